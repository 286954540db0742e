package claude

import (
	"encoding/json"
	"strings"
)

// wireMessage mirrors the envelope of one stream-json line. Assistant and
// user payloads nest the API message under "message"; system and result
// events carry their fields at the top level.
type wireMessage struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`

	Message *struct {
		StopReason *string     `json:"stop_reason"`
		Content    []wireBlock `json:"content"`
	} `json:"message"`

	// Result fields
	IsError      bool            `json:"is_error"`
	Result       string          `json:"result"`
	TotalCostUSD float64         `json:"total_cost_usd"`
	DurationMs   int             `json:"duration_ms"`
	Usage        *wireUsage      `json:"usage"`
	RawError     json.RawMessage `json:"error"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
}

type wireUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
}

// ParseLine converts one JSON line into a StreamEvent. It returns nil for
// empty lines, unparseable lines, and unknown event kinds; the stream
// carries hook chatter and future message types we do not care about.
func ParseLine(line []byte) *StreamEvent {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil
	}

	var msg wireMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		return nil
	}

	switch msg.Type {
	case "system":
		return &StreamEvent{Kind: EventSystem, SessionID: msg.SessionID}

	case "assistant":
		return parseAssistant(&msg)

	case "user":
		return parseUser(&msg)

	case "result":
		return parseResult(&msg)

	default:
		return nil
	}
}

func parseAssistant(msg *wireMessage) *StreamEvent {
	ev := &StreamEvent{Kind: EventAssistant, SessionID: msg.SessionID}

	// A message without a stop reason is a partial snapshot carrying the
	// full accumulated text so far, not a delta.
	ev.IsPartial = msg.Message == nil || msg.Message.StopReason == nil

	if msg.Message == nil {
		return ev
	}

	for _, block := range msg.Message.Content {
		switch block.Type {
		case "text":
			ev.Text += block.Text

		case "thinking":
			ev.Thinking += block.Thinking

		case "redacted_thinking":
			ev.HasRedactedThinking = true

		case "tool_use":
			var input map[string]any
			if len(block.Input) > 0 {
				json.Unmarshal(block.Input, &input)
			}
			ev.ToolUse = &ToolUse{
				ID:       block.ID,
				Name:     block.Name,
				Input:    input,
				Category: CategorizeTool(block.Name),
			}
			if block.Name == "AskUserQuestion" {
				ev.AskQuestions = parseAskQuestions(block.Input)
			}
		}
	}

	return ev
}

// parseAskQuestions extracts the questions array from an AskUserQuestion
// tool input. Options with empty labels are dropped.
func parseAskQuestions(input json.RawMessage) []AskQuestion {
	if len(input) == 0 {
		return nil
	}

	var payload struct {
		Questions []AskQuestion `json:"questions"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return nil
	}

	questions := make([]AskQuestion, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		options := make([]AskOption, 0, len(q.Options))
		for _, o := range q.Options {
			if o.Label != "" {
				options = append(options, o)
			}
		}
		q.Options = options
		questions = append(questions, q)
	}
	return questions
}

func parseUser(msg *wireMessage) *StreamEvent {
	ev := &StreamEvent{Kind: EventUser, SessionID: msg.SessionID}
	if msg.Message == nil {
		return ev
	}

	// Only the first tool_result block matters; the CLI emits one per
	// user message in stream mode.
	for _, block := range msg.Message.Content {
		if block.Type != "tool_result" {
			continue
		}
		ev.ToolResultID = block.ToolUseID
		ev.ToolResultContent = parseToolResultContent(block.Content)
		break
	}
	return ev
}

// parseToolResultContent handles both wire shapes of tool_result content:
// a plain string, or a list of {type:"text", text:...} blocks.
func parseToolResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func parseResult(msg *wireMessage) *StreamEvent {
	ev := &StreamEvent{
		Kind:       EventResult,
		SessionID:  msg.SessionID,
		IsComplete: true,
		Text:       msg.Result,
		CostUSD:    msg.TotalCostUSD,
		DurationMs: msg.DurationMs,
	}
	if msg.Usage != nil {
		ev.Usage = Usage{
			InputTokens:         msg.Usage.InputTokens,
			OutputTokens:        msg.Usage.OutputTokens,
			CacheReadTokens:     msg.Usage.CacheReadTokens,
			CacheCreationTokens: msg.Usage.CacheCreationTokens,
		}
	}
	if msg.Subtype == "error" || msg.IsError {
		ev.Error = msg.Result
		if ev.Error == "" {
			ev.Error = "unknown error"
		}
	}
	return ev
}
