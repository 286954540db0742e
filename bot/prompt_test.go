package bot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccdb/ccdb/db"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, db.Open(filepath.Join(t.TempDir(), "test.sqlite")))
	t.Cleanup(func() { db.Close() })
}

func TestBuildSystemPromptConcurrencyOnly(t *testing.T) {
	registry := NewSessionRegistry()

	prompt := BuildSystemPrompt("t1", registry, false)
	assert.Contains(t, prompt, "thread t1")
	assert.NotContains(t, prompt, "lounge")
	assert.NotContains(t, prompt, "Currently active sessions")
}

func TestBuildSystemPromptListsOtherSessions(t *testing.T) {
	registry := NewSessionRegistry()
	registry.Register("t1", "this run", "/a")
	registry.Register("t2", "refactoring the scheduler", "/b")

	prompt := BuildSystemPrompt("t1", registry, false)
	assert.Contains(t, prompt, "Currently active sessions:")
	assert.Contains(t, prompt, "refactoring the scheduler")
	assert.Contains(t, prompt, "(in /b)")
	assert.NotContains(t, prompt, "this run")
}

func TestBuildSystemPromptLoungeBlock(t *testing.T) {
	openTestDB(t)

	_, err := db.PostLoungeMessage("starting work on auth", "session-a", 0)
	require.NoError(t, err)

	prompt := BuildSystemPrompt("t1", NewSessionRegistry(), true)
	assert.Contains(t, prompt, "lounge")
	assert.Contains(t, prompt, "session-a: starting work on auth")

	// Timestamps render as HH:MM, seconds stripped
	assert.Regexp(t, `\[\d{2}:\d{2}\] session-a`, prompt)
}

func TestClockOf(t *testing.T) {
	assert.Equal(t, "14:35", clockOf("2026-08-25 14:35:59"))
	assert.Equal(t, "garbage", clockOf("garbage"))
}
