package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is the durable association between one Discord thread and one
// Claude CLI session identifier.
type Session struct {
	ThreadID   string
	SessionID  string
	WorkingDir string
	Model      string
	Origin     string // "discord" or "cli"
	Summary    string
	CreatedAt  string
	LastUsedAt string
}

func scanSession(rows *sql.Rows) (Session, error) {
	var s Session
	var workingDir, model, summary sql.NullString
	err := rows.Scan(&s.ThreadID, &s.SessionID, &workingDir, &model, &s.Origin, &summary, &s.CreatedAt, &s.LastUsedAt)
	s.WorkingDir = workingDir.String
	s.Model = model.String
	s.Summary = summary.String
	return s, err
}

const sessionColumns = `thread_id, session_id, working_dir, model, origin, summary, created_at, last_used_at`

// GetSession returns the session for a thread, or nil if none exists
func GetSession(threadID string) (*Session, error) {
	sessions, err := Select(
		`SELECT `+sessionColumns+` FROM sessions WHERE thread_id = ?`,
		[]QueryParam{threadID},
		scanSession,
	)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// GetSessionBySessionID reverse-looks-up a session by its CLI session id
func GetSessionBySessionID(sessionID string) (*Session, error) {
	sessions, err := Select(
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`,
		[]QueryParam{sessionID},
		scanSession,
	)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

// SaveSession upserts the thread→session mapping. On conflict the session
// id and last_used_at are always refreshed; the optional fields overwrite
// only when non-empty so a resumed run does not erase earlier metadata.
func SaveSession(threadID, sessionID string, opts ...SessionOption) error {
	s := &Session{
		ThreadID:  threadID,
		SessionID: sessionID,
		Origin:    "discord",
	}
	for _, opt := range opts {
		opt(s)
	}

	now := Now()
	_, err := Run(
		`INSERT INTO sessions (thread_id, session_id, working_dir, model, origin, summary, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
		   session_id   = excluded.session_id,
		   working_dir  = COALESCE(NULLIF(excluded.working_dir, ''), sessions.working_dir),
		   model        = COALESCE(NULLIF(excluded.model, ''), sessions.model),
		   origin       = excluded.origin,
		   summary      = COALESCE(NULLIF(excluded.summary, ''), sessions.summary),
		   last_used_at = excluded.last_used_at`,
		threadID, sessionID, s.WorkingDir, s.Model, s.Origin, s.Summary, now, now,
	)
	return err
}

// SessionOption sets an optional field on save
type SessionOption func(*Session)

func WithWorkingDir(dir string) SessionOption { return func(s *Session) { s.WorkingDir = dir } }
func WithModel(model string) SessionOption    { return func(s *Session) { s.Model = model } }
func WithOrigin(origin string) SessionOption  { return func(s *Session) { s.Origin = origin } }
func WithSummary(summary string) SessionOption {
	return func(s *Session) { s.Summary = summary }
}

// ListSessions returns sessions ordered by last use, newest first.
// When origin is non-empty only sessions with that origin are returned.
func ListSessions(limit int, origin string) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if origin != "" {
		return Select(
			`SELECT `+sessionColumns+` FROM sessions WHERE origin = ? ORDER BY last_used_at DESC LIMIT ?`,
			[]QueryParam{origin, limit},
			scanSession,
		)
	}
	return Select(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY last_used_at DESC LIMIT ?`,
		[]QueryParam{limit},
		scanSession,
	)
}

// DeleteSession removes the mapping for a thread. Returns whether a row existed.
func DeleteSession(threadID string) (bool, error) {
	res, err := Run(`DELETE FROM sessions WHERE thread_id = ?`, threadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CleanupOldSessions deletes sessions idle for more than the given number of days
func CleanupOldSessions(days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := FormatTime(time.Now().AddDate(0, 0, -days))
	res, err := Run(`DELETE FROM sessions WHERE last_used_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return res.RowsAffected()
}
