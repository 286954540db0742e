package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineSkipsGarbage(t *testing.T) {
	assert.Nil(t, ParseLine(nil))
	assert.Nil(t, ParseLine([]byte("   ")))
	assert.Nil(t, ParseLine([]byte("not json at all")))
	assert.Nil(t, ParseLine([]byte(`{"type":"stream_event","event":{}}`)))
}

func TestParseLineSystem(t *testing.T) {
	ev := ParseLine([]byte(`{"type":"system","subtype":"init","session_id":"abc-123"}`))
	require.NotNil(t, ev)
	assert.Equal(t, EventSystem, ev.Kind)
	assert.Equal(t, "abc-123", ev.SessionID)
	assert.False(t, ev.IsComplete)
}

func TestParseLineAssistantText(t *testing.T) {
	line := `{"type":"assistant","session_id":"s1","message":{"stop_reason":"end_turn","content":[{"type":"text","text":"Hello "},{"type":"text","text":"world"}]}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	assert.Equal(t, EventAssistant, ev.Kind)
	assert.Equal(t, "Hello world", ev.Text)
	assert.False(t, ev.IsPartial)
}

func TestParseLineAssistantPartial(t *testing.T) {
	// No stop_reason means a streaming snapshot
	line := `{"type":"assistant","session_id":"s1","message":{"stop_reason":null,"content":[{"type":"text","text":"Hel"}]}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	assert.True(t, ev.IsPartial)
	assert.Equal(t, "Hel", ev.Text)

	// No message at all is still partial
	ev = ParseLine([]byte(`{"type":"assistant","session_id":"s1"}`))
	require.NotNil(t, ev)
	assert.True(t, ev.IsPartial)
}

func TestParseLineAssistantThinking(t *testing.T) {
	line := `{"type":"assistant","message":{"stop_reason":"end_turn","content":[{"type":"thinking","thinking":"pondering"},{"type":"redacted_thinking"}]}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	assert.Equal(t, "pondering", ev.Thinking)
	assert.True(t, ev.HasRedactedThinking)
}

func TestParseLineToolUse(t *testing.T) {
	line := `{"type":"assistant","message":{"stop_reason":"tool_use","content":[{"type":"tool_use","id":"toolu_01","name":"Bash","input":{"command":"ls -la"}}]}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	require.NotNil(t, ev.ToolUse)
	assert.Equal(t, "toolu_01", ev.ToolUse.ID)
	assert.Equal(t, "Bash", ev.ToolUse.Name)
	assert.Equal(t, ToolCategoryCommand, ev.ToolUse.Category)
	assert.Equal(t, "ls -la", ev.ToolUse.Input["command"])
	assert.Empty(t, ev.AskQuestions)
}

func TestParseLineAskUserQuestion(t *testing.T) {
	line := `{"type":"assistant","message":{"stop_reason":"tool_use","content":[{"type":"tool_use","id":"toolu_02","name":"AskUserQuestion","input":{"questions":[{"question":"Deploy to prod?","header":"Deploy","multi_select":false,"options":[{"label":"Yes","description":"ship it"},{"label":""},{"label":"No"}]}]}}]}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	require.NotNil(t, ev.ToolUse)
	assert.Equal(t, ToolCategoryAsk, ev.ToolUse.Category)
	require.Len(t, ev.AskQuestions, 1)

	q := ev.AskQuestions[0]
	assert.Equal(t, "Deploy to prod?", q.Question)
	assert.Equal(t, "Deploy", q.Header)
	assert.False(t, q.MultiSelect)
	// Empty-label option is dropped
	require.Len(t, q.Options, 2)
	assert.Equal(t, "Yes", q.Options[0].Label)
	assert.Equal(t, "No", q.Options[1].Label)
}

func TestParseLineToolResultString(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_01","content":"file1\nfile2"}]}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	assert.Equal(t, EventUser, ev.Kind)
	assert.Equal(t, "toolu_01", ev.ToolResultID)
	assert.Equal(t, "file1\nfile2", ev.ToolResultContent)
}

func TestParseLineToolResultBlocks(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_01","content":[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]}]}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	assert.Equal(t, "part one\npart two", ev.ToolResultContent)
}

func TestParseLineResultSuccess(t *testing.T) {
	line := `{"type":"result","subtype":"success","session_id":"s1","is_error":false,"result":"All done","total_cost_usd":0.0123,"duration_ms":4200,"usage":{"input_tokens":100,"output_tokens":50,"cache_read_input_tokens":2000,"cache_creation_input_tokens":300}}`
	ev := ParseLine([]byte(line))
	require.NotNil(t, ev)
	assert.Equal(t, EventResult, ev.Kind)
	assert.True(t, ev.IsComplete)
	assert.Empty(t, ev.Error)
	assert.Equal(t, "All done", ev.Text)
	assert.Equal(t, 0.0123, ev.CostUSD)
	assert.Equal(t, 4200, ev.DurationMs)
	assert.Equal(t, 100, ev.Usage.InputTokens)
	assert.Equal(t, 2000, ev.Usage.CacheReadTokens)
}

func TestParseLineResultError(t *testing.T) {
	ev := ParseLine([]byte(`{"type":"result","subtype":"error","is_error":true,"result":"rate limited"}`))
	require.NotNil(t, ev)
	assert.True(t, ev.IsComplete)
	assert.Equal(t, "rate limited", ev.Error)

	// Error with no message falls back to a generic one
	ev = ParseLine([]byte(`{"type":"result","subtype":"error","is_error":true}`))
	require.NotNil(t, ev)
	assert.Equal(t, "unknown error", ev.Error)
}

func TestCategorizeTool(t *testing.T) {
	assert.Equal(t, ToolCategoryRead, CategorizeTool("Read"))
	assert.Equal(t, ToolCategoryRead, CategorizeTool("Glob"))
	assert.Equal(t, ToolCategoryRead, CategorizeTool("Grep"))
	assert.Equal(t, ToolCategoryEdit, CategorizeTool("Write"))
	assert.Equal(t, ToolCategoryEdit, CategorizeTool("Edit"))
	assert.Equal(t, ToolCategoryCommand, CategorizeTool("Bash"))
	assert.Equal(t, ToolCategoryWeb, CategorizeTool("WebFetch"))
	assert.Equal(t, ToolCategoryAsk, CategorizeTool("AskUserQuestion"))
	assert.Equal(t, ToolCategoryOther, CategorizeTool("mcp__github__create_issue"))
}
