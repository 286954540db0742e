package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, Open(filepath.Join(t.TempDir(), "test.sqlite")))
	t.Cleanup(func() { Close() })
}

func TestSessionSaveGetRoundTrip(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveSession("thread-1", "abc-123",
		WithWorkingDir("/repo"), WithModel("sonnet"), WithSummary("fix the parser")))

	s, err := GetSession("thread-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "abc-123", s.SessionID)
	assert.Equal(t, "/repo", s.WorkingDir)
	assert.Equal(t, "sonnet", s.Model)
	assert.Equal(t, "discord", s.Origin)
	assert.Equal(t, "fix the parser", s.Summary)
	assert.NotEmpty(t, s.LastUsedAt)
}

func TestSessionGetMissing(t *testing.T) {
	openTestDB(t)

	s, err := GetSession("ghost")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionUpsertPreservesUnsetFields(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveSession("thread-1", "sid-1", WithWorkingDir("/repo"), WithModel("opus")))
	// Second save carries only the new session id
	require.NoError(t, SaveSession("thread-1", "sid-2"))

	s, err := GetSession("thread-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "sid-2", s.SessionID)
	assert.Equal(t, "/repo", s.WorkingDir)
	assert.Equal(t, "opus", s.Model)
}

func TestSessionReverseLookup(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveSession("thread-1", "sid-1"))

	s, err := GetSessionBySessionID("sid-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "thread-1", s.ThreadID)

	s, err = GetSessionBySessionID("nope")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionListOrderedByLastUsed(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveSession("t1", "s1"))
	require.NoError(t, SaveSession("t2", "s2"))
	require.NoError(t, SaveSession("t1", "s1b")) // touches last_used_at

	all, err := ListSessions(10, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	byOrigin, err := ListSessions(10, "cli")
	require.NoError(t, err)
	assert.Empty(t, byOrigin)
}

func TestSessionDelete(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveSession("t1", "s1"))

	deleted, err := DeleteSession("t1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = DeleteSession("t1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionCleanupOld(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveSession("old", "s-old"))
	// Backdate far past the sweep horizon
	_, err := Run(`UPDATE sessions SET last_used_at = '2020-01-01 00:00:00' WHERE thread_id = 'old'`)
	require.NoError(t, err)
	require.NoError(t, SaveSession("fresh", "s-fresh"))

	n, err := CleanupOldSessions(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	s, err := GetSession("fresh")
	require.NoError(t, err)
	assert.NotNil(t, s)
}
