package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ccdb/ccdb/claude"
)

// PendingAsk records an AskUserQuestion that has not yet been answered.
// At most one pending ask exists per thread.
type PendingAsk struct {
	ThreadID      string
	SessionID     string
	Questions     []claude.AskQuestion
	QuestionIndex int
	CreatedAt     string
}

// SavePendingAsk upserts the pending ask for a thread
func SavePendingAsk(threadID, sessionID string, questions []claude.AskQuestion, questionIndex int) error {
	payload, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	_, err = Run(
		`INSERT INTO pending_asks (thread_id, session_id, questions, question_index, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
		   session_id     = excluded.session_id,
		   questions      = excluded.questions,
		   question_index = excluded.question_index`,
		threadID, sessionID, string(payload), questionIndex, Now(),
	)
	return err
}

func scanPendingAsk(rows *sql.Rows) (PendingAsk, error) {
	var a PendingAsk
	var sessionID sql.NullString
	var questions string
	if err := rows.Scan(&a.ThreadID, &sessionID, &questions, &a.QuestionIndex, &a.CreatedAt); err != nil {
		return a, err
	}
	a.SessionID = sessionID.String
	err := json.Unmarshal([]byte(questions), &a.Questions)
	return a, err
}

// GetPendingAsk returns the pending ask for a thread, or nil
func GetPendingAsk(threadID string) (*PendingAsk, error) {
	asks, err := Select(
		`SELECT thread_id, session_id, questions, question_index, created_at
		 FROM pending_asks WHERE thread_id = ?`,
		[]QueryParam{threadID},
		scanPendingAsk,
	)
	if err != nil {
		return nil, err
	}
	if len(asks) == 0 {
		return nil, nil
	}
	return &asks[0], nil
}

// ListPendingAsks returns all pending asks
func ListPendingAsks() ([]PendingAsk, error) {
	return Select(
		`SELECT thread_id, session_id, questions, question_index, created_at
		 FROM pending_asks ORDER BY created_at`,
		nil,
		scanPendingAsk,
	)
}

// DeletePendingAsk removes the pending ask for a thread
func DeletePendingAsk(threadID string) error {
	_, err := Run(`DELETE FROM pending_asks WHERE thread_id = ?`, threadID)
	return err
}

// CleanupOldPendingAsks prunes asks older than the given number of hours
func CleanupOldPendingAsks(hours int) (int64, error) {
	if hours <= 0 {
		hours = 48
	}
	cutoff := FormatTime(time.Now().Add(-time.Duration(hours) * time.Hour))
	res, err := Run(`DELETE FROM pending_asks WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
