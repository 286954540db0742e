package claude

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgsOrder(t *testing.T) {
	r := NewRunner(Options{
		Model:          "claude-sonnet-4",
		PermissionMode: "acceptEdits",
	})

	args := r.buildArgs("do the thing", "")
	assert.Equal(t, []string{
		"-p", "--output-format", "stream-json",
		"--model", "claude-sonnet-4",
		"--permission-mode", "acceptEdits",
		"--verbose",
		"--include-partial-messages",
		"--", "do the thing",
	}, args)
}

func TestBuildArgsAllFlags(t *testing.T) {
	r := NewRunner(Options{
		Model:                      "opus",
		PermissionMode:             "plan",
		AllowedTools:               []string{"Read", "Bash"},
		DangerouslySkipPermissions: true,
		IncludePartialMessages:     true,
		AppendSystemPrompt:         "extra context",
	})

	args := r.buildArgs("-prompt that looks like a flag", "abc-def-123")
	assert.Equal(t, []string{
		"-p", "--output-format", "stream-json",
		"--model", "opus",
		"--permission-mode", "plan",
		"--verbose",
		"--allowedTools", "Read,Bash",
		"--dangerously-skip-permissions",
		"--include-partial-messages",
		"--append-system-prompt", "extra context",
		"--resume", "abc-def-123",
		"--", "-prompt that looks like a flag",
	}, args)
}

func TestBuildArgsOmitsEmptyFlags(t *testing.T) {
	r := NewRunner(Options{})
	args := r.buildArgs("hi", "")
	assert.Equal(t, []string{
		"-p", "--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
		"--", "hi",
	}, args)
}

func TestNewRunnerDefaultsPartialMessages(t *testing.T) {
	r := NewRunner(Options{})
	assert.True(t, r.Options().IncludePartialMessages)

	// Clones inherit the default too
	assert.True(t, r.Clone(WithThreadID("t1")).Options().IncludePartialMessages)
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, ValidSessionID("a1b2c3"))
	assert.True(t, ValidSessionID("550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, ValidSessionID(""))
	assert.False(t, ValidSessionID("ABC-123"))
	assert.False(t, ValidSessionID("abc 123"))
	assert.False(t, ValidSessionID("abc;rm -rf /"))
	assert.False(t, ValidSessionID("../../etc/passwd"))
}

func TestRunRejectsBadSessionID(t *testing.T) {
	r := NewRunner(Options{Command: "/bin/true"})
	events, err := r.Run(context.Background(), "hi", "NOT VALID")
	require.Error(t, err)
	assert.Nil(t, events)
	assert.Contains(t, err.Error(), "invalid session id")
}

func TestRunnerSingleUse(t *testing.T) {
	r := NewRunner(Options{Command: "/bin/true"})
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	_, err := r.Run(context.Background(), "hi", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestBuildEnvDenylist(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")
	t.Setenv("DISCORD_BOT_TOKEN", "secret-token")
	t.Setenv("DISCORD_TOKEN", "secret-token-2")
	t.Setenv("API_SECRET_KEY", "secret-key")
	t.Setenv("HARMLESS_VAR", "keep-me")

	r := NewRunner(Options{
		APIPort:   8737,
		APISecret: "bearer-secret",
		ThreadID:  "thread-42",
	})

	env := r.buildEnv()
	joined := strings.Join(env, "\n")

	assert.NotContains(t, joined, "CLAUDECODE=")
	assert.NotContains(t, joined, "DISCORD_BOT_TOKEN=")
	assert.NotContains(t, joined, "DISCORD_TOKEN=")
	assert.NotContains(t, joined, "API_SECRET_KEY=")

	assert.Contains(t, env, "HARMLESS_VAR=keep-me")
	assert.Contains(t, env, "CCDB_API_URL=http://127.0.0.1:8737")
	assert.Contains(t, env, "CCDB_API_SECRET=bearer-secret")
	assert.Contains(t, env, "DISCORD_THREAD_ID=thread-42")
}

func TestBuildEnvNoAPIWhenPortUnset(t *testing.T) {
	r := NewRunner(Options{})
	for _, kv := range r.buildEnv() {
		assert.False(t, strings.HasPrefix(kv, "CCDB_API_URL="))
		assert.False(t, strings.HasPrefix(kv, "CCDB_API_SECRET="))
		assert.False(t, strings.HasPrefix(kv, "DISCORD_THREAD_ID="))
	}
}

func TestCloneOverrides(t *testing.T) {
	base := NewRunner(Options{
		Command:  "claude",
		Model:    "sonnet",
		ThreadID: "t1",
	})

	clone := base.Clone(WithThreadID("t2"), WithModel("opus"))
	opts := clone.Options()
	assert.Equal(t, "t2", opts.ThreadID)
	assert.Equal(t, "opus", opts.Model)
	assert.Equal(t, "claude", opts.Command)

	// Clone does not mutate the source
	assert.Equal(t, "t1", base.Options().ThreadID)
	assert.Equal(t, "sonnet", base.Options().Model)
}

// writeScript drops a fake CLI into a temp dir. The script ignores its argv,
// which lets the runner pass its usual flags.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := t.TempDir() + "/fake-cli.sh"
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func collect(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var got []StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestRunnerStreamsRealProcess(t *testing.T) {
	path := writeScript(t,
		`echo '{"type":"assistant","session_id":"abc","message":{"stop_reason":"end_turn","content":[{"type":"text","text":"hi"}]}}'
echo '{"type":"result","subtype":"success","session_id":"abc","result":"done","total_cost_usd":0.01,"duration_ms":5}'
`)
	r := NewRunner(Options{Command: path})

	events, err := r.Run(context.Background(), "ignored", "")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Text)
	assert.True(t, got[1].IsComplete)
	assert.Empty(t, got[1].Error)
}

func TestRunnerSynthesizesExitError(t *testing.T) {
	path := writeScript(t, "echo 'boom' >&2\nexit 3\n")
	r := NewRunner(Options{Command: path})

	events, err := r.Run(context.Background(), "hi", "")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsComplete)
	assert.Contains(t, got[0].Error, "CLI exited with code 3")
	assert.Contains(t, got[0].Error, "boom")
}

func TestRunnerNoSynthErrorAfterResult(t *testing.T) {
	// A terminal event before a non-zero exit suppresses the synthetic error
	path := writeScript(t, `echo '{"type":"result","subtype":"success","result":"ok"}'
exit 1
`)
	r := NewRunner(Options{Command: path})

	events, err := r.Run(context.Background(), "hi", "")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsComplete)
	assert.Empty(t, got[0].Error)
}

func TestRunnerTimeout(t *testing.T) {
	path := writeScript(t, "exec sleep 30\n")
	r := NewRunner(Options{Command: path, TimeoutSeconds: 1})

	events, err := r.Run(context.Background(), "hi", "")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsComplete)
	assert.Equal(t, "Timed out after 1 seconds", got[0].Error)
}

func TestRunnerKillStaysSilent(t *testing.T) {
	path := writeScript(t, "exec sleep 30\n")
	r := NewRunner(Options{Command: path})

	events, err := r.Run(context.Background(), "hi", "")
	require.NoError(t, err)

	go r.Kill()

	got := collect(t, events)
	assert.Empty(t, got)
}

func TestInterruptReturnsWhileConsumerStalls(t *testing.T) {
	// More events than the channel buffers, then a hang. The consumer reads
	// one event and interrupts synchronously, exactly the pattern that must
	// not wedge: the pump is blocked sending, so the stream cannot settle
	// until the escalation path force-unblocks it.
	var body strings.Builder
	for i := 0; i < 40; i++ {
		body.WriteString(`echo '{"type":"assistant","message":{"stop_reason":"end_turn","content":[{"type":"text","text":"x"}]}}'` + "\n")
	}
	body.WriteString("exec sleep 60\n")

	r := NewRunner(Options{Command: writeScript(t, body.String())})
	r.interruptGrace = 100 * time.Millisecond
	r.killGrace = 100 * time.Millisecond

	events, err := r.Run(context.Background(), "hi", "")
	require.NoError(t, err)

	<-events

	returned := make(chan struct{})
	go func() {
		r.Interrupt()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(10 * time.Second):
		t.Fatal("Interrupt never returned with a stalled consumer")
	}

	// The stream settles once the consumer drains again
	drained := make(chan struct{})
	go func() {
		for range events {
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("event channel never closed after interrupt")
	}
}
