package db

import (
	"database/sql"
	"time"
)

// DefaultResumeTTLMinutes bounds how long a pending resume stays valid.
// A stale marker from an old crash must not re-enter threads much later.
const DefaultResumeTTLMinutes = 5

// PendingResume marks a thread to be re-entered after a process restart
type PendingResume struct {
	ID           int64
	ThreadID     string
	SessionID    string
	Reason       string
	ResumePrompt string
	CreatedAt    string
}

// MarkPendingResume upserts the resume marker for a thread
func MarkPendingResume(threadID, sessionID, reason, resumePrompt string) error {
	_, err := Run(
		`INSERT INTO pending_resumes (thread_id, session_id, reason, resume_prompt, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
		   session_id    = excluded.session_id,
		   reason        = excluded.reason,
		   resume_prompt = excluded.resume_prompt,
		   created_at    = excluded.created_at`,
		threadID, sessionID, reason, resumePrompt, Now(),
	)
	return err
}

// GetPendingResumes prunes expired rows first, then returns the survivors
// oldest-first. Expired rows are never returned.
func GetPendingResumes(ttlMinutes int) ([]PendingResume, error) {
	if ttlMinutes <= 0 {
		ttlMinutes = DefaultResumeTTLMinutes
	}
	cutoff := FormatTime(time.Now().Add(-time.Duration(ttlMinutes) * time.Minute))

	if _, err := Run(`DELETE FROM pending_resumes WHERE created_at < ?`, cutoff); err != nil {
		return nil, err
	}

	return Select(
		`SELECT id, thread_id, session_id, reason, resume_prompt, created_at
		 FROM pending_resumes ORDER BY created_at`,
		nil,
		func(rows *sql.Rows) (PendingResume, error) {
			var r PendingResume
			var sessionID, resumePrompt sql.NullString
			err := rows.Scan(&r.ID, &r.ThreadID, &sessionID, &r.Reason, &resumePrompt, &r.CreatedAt)
			r.SessionID = sessionID.String
			r.ResumePrompt = resumePrompt.String
			return r, err
		},
	)
}

// DeletePendingResume removes one resume marker by row id
func DeletePendingResume(id int64) error {
	_, err := Run(`DELETE FROM pending_resumes WHERE id = ?`, id)
	return err
}

// DeletePendingResumeByThread removes the resume marker for a thread
func DeletePendingResumeByThread(threadID string) error {
	_, err := Run(`DELETE FROM pending_resumes WHERE thread_id = ?`, threadID)
	return err
}
