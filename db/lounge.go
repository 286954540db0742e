package db

import (
	"database/sql"
)

const (
	// DefaultLoungeRetention caps how many lounge messages are kept
	DefaultLoungeRetention = 200

	maxLoungeLabelLen   = 50
	maxLoungeMessageLen = 1000
)

// LoungeMessage is a short note from one active session visible to others
type LoungeMessage struct {
	ID       int64
	Label    string
	Message  string
	PostedAt string
}

// PostLoungeMessage inserts a message and prunes the table to the newest
// retention rows in the same transaction. Over-long labels and messages
// are truncated, not rejected.
func PostLoungeMessage(message, label string, retention int) (int64, error) {
	if retention <= 0 {
		retention = DefaultLoungeRetention
	}
	if label == "" {
		label = "anonymous"
	}
	if len(label) > maxLoungeLabelLen {
		label = label[:maxLoungeLabelLen]
	}
	if len(message) > maxLoungeMessageLen {
		message = message[:maxLoungeMessageLen]
	}

	var id int64
	err := Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO lounge_messages (label, message, posted_at) VALUES (?, ?, ?)`,
			label, message, Now(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`DELETE FROM lounge_messages WHERE id NOT IN (
			   SELECT id FROM lounge_messages ORDER BY id DESC LIMIT ?
			 )`,
			retention,
		)
		return err
	})
	return id, err
}

// GetRecentLoungeMessages returns the newest N messages in chronological
// (oldest-first) order.
func GetRecentLoungeMessages(limit int) ([]LoungeMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	newest, err := Select(
		`SELECT id, label, message, posted_at FROM lounge_messages ORDER BY id DESC LIMIT ?`,
		[]QueryParam{limit},
		func(rows *sql.Rows) (LoungeMessage, error) {
			var m LoungeMessage
			err := rows.Scan(&m.ID, &m.Label, &m.Message, &m.PostedAt)
			return m, err
		},
	)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

// CountLoungeMessages returns the number of retained messages
func CountLoungeMessages() (int64, error) {
	return Count(`SELECT COUNT(*) FROM lounge_messages`)
}
