package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccdb/ccdb/claude"
	"github.com/ccdb/ccdb/config"
	"github.com/ccdb/ccdb/db"
	"github.com/ccdb/ccdb/discord"
)

// writeFakeCLI drops a stand-in CLI script that appends its argv to a log
// file, announces a session, then blocks until signaled. exec keeps the
// sleep in the script's own pid so interrupts land directly.
func writeFakeCLI(t *testing.T, argvLog string) string {
	t.Helper()
	body := "#!/bin/sh\n" +
		`printf '%s\n' "$*" >> "` + argvLog + `"` + "\n" +
		`echo '{"type":"system","subtype":"init","session_id":"abc123"}'` + "\n" +
		"exec sleep 30\n"
	path := filepath.Join(t.TempDir(), "fake-cli.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func argvLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func newTestSupervisor(t *testing.T, maxSessions int) (*Supervisor, *fakeTransport, string) {
	t.Helper()
	openTestDB(t)

	argvLog := filepath.Join(t.TempDir(), "argv.log")
	base := claude.NewRunner(claude.Options{Command: writeFakeCLI(t, argvLog)})
	transport := newFakeTransport()
	s := NewSupervisor(&config.Config{
		DiscordChannelID:      "main",
		MaxConcurrentSessions: maxSessions,
	}, transport, base)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, transport, argvLog
}

func TestSupervisorNewMessageInterruptsAndResumes(t *testing.T) {
	s, transport, argvLog := newTestSupervisor(t, 3)

	s.HandleMessage(&discord.IncomingMessage{
		ChannelID: "main", MessageID: "m1", AuthorID: "u", Content: "first task",
	})

	waitForCondition(t, func() bool { return len(argvLines(argvLog)) == 1 })
	// The session save races the prompt log; wait for the persisted mapping
	waitForCondition(t, func() bool {
		session, err := db.GetSession("main-thread-1")
		return err == nil && session != nil
	})

	s.HandleMessage(&discord.IncomingMessage{
		ChannelID: "main-thread-1", IsThread: true, ParentID: "main",
		MessageID: "m2", AuthorID: "u", Content: "follow-up work",
	})

	waitForCondition(t, func() bool { return len(argvLines(argvLog)) == 2 })

	thread := transport.Channel("main-thread-1").(*fakeChannel)
	assert.Contains(t, thread.textMessages(), "⚡ Interrupted — handling your new message.")

	lines := argvLines(argvLog)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "-- first task"))
	// The second turn launches only after the first cleaned up, so it
	// resumes the session the first one persisted
	assert.Contains(t, lines[1], "--resume abc123")
	assert.True(t, strings.HasSuffix(lines[1], "-- follow-up work"))
}

func TestSupervisorQueuedRunSupersededByNewerMessage(t *testing.T) {
	s, transport, argvLog := newTestSupervisor(t, 1)

	// Fill the only slot with a long run in its own thread
	s.HandleMessage(&discord.IncomingMessage{
		ChannelID: "main", MessageID: "m1", AuthorID: "u", Content: "first task",
	})
	waitForCondition(t, func() bool { return len(argvLines(argvLog)) == 1 })

	waiting := func() int {
		n := 0
		for _, tx := range transport.Channel("tb").(*fakeChannel).textMessages() {
			if tx == "⏳ Waiting for a free session slot…" {
				n++
			}
		}
		return n
	}

	// First message in thread tb queues on the semaphore
	s.HandleMessage(&discord.IncomingMessage{
		ChannelID: "tb", IsThread: true, ParentID: "main",
		MessageID: "m2", AuthorID: "u", Content: "queued message one",
	})
	waitForCondition(t, func() bool { return waiting() == 1 })

	// A second message while the first is still queued supersedes it
	s.HandleMessage(&discord.IncomingMessage{
		ChannelID: "tb", IsThread: true, ParentID: "main",
		MessageID: "m3", AuthorID: "u", Content: "queued message two",
	})
	waitForCondition(t, func() bool { return waiting() == 2 })

	// Free the slot; only the superseding message may run
	s.handleStopClick(&fakeInteraction{customID: StopCustomIDPrefix + "main-thread-1"})
	waitForCondition(t, func() bool { return len(argvLines(argvLog)) == 2 })

	time.Sleep(50 * time.Millisecond)
	lines := argvLines(argvLog)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "-- first task"))
	assert.True(t, strings.HasSuffix(lines[1], "-- queued message two"))
	for _, line := range lines {
		assert.NotContains(t, line, "queued message one")
	}
}

func TestSupervisorResumePendingDeletesRowBeforeRunFinishes(t *testing.T) {
	s, transport, argvLog := newTestSupervisor(t, 3)

	require.NoError(t, db.MarkPendingResume("t-resume", "abc123", "shutdown", ""))

	s.ResumePending()
	waitForCondition(t, func() bool { return len(argvLines(argvLog)) == 1 })

	// The run is still alive (the script sleeps), yet the row is already
	// gone: a crash mid-resume cannot double-fire
	rows, err := db.GetPendingResumes(db.DefaultResumeTTLMinutes)
	require.NoError(t, err)
	assert.Empty(t, rows)

	thread := transport.Channel("t-resume").(*fakeChannel)
	assert.Contains(t, thread.textMessages(), "🔄 Bot restarted — resuming previous work.")

	lines := argvLines(argvLog)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "--resume abc123")
	assert.True(t, strings.HasSuffix(lines[0], "-- Please continue the previous work."))
}
