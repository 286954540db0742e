package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ScheduledNotification is a one-shot message created via the HTTP API
type ScheduledNotification struct {
	ID          string
	Message     string
	Title       string
	Color       int
	ChannelID   string
	ScheduledAt string
	Status      string // pending, sent, cancelled
	CreatedAt   string
}

const notificationColumns = `id, message, title, color, channel_id, scheduled_at, status, created_at`

func scanNotification(rows *sql.Rows) (ScheduledNotification, error) {
	var n ScheduledNotification
	var title, channelID sql.NullString
	var color sql.NullInt64
	err := rows.Scan(&n.ID, &n.Message, &title, &color, &channelID, &n.ScheduledAt, &n.Status, &n.CreatedAt)
	n.Title = title.String
	n.Color = int(color.Int64)
	n.ChannelID = channelID.String
	return n, err
}

// CreateScheduledNotification persists a notification due at the given time
func CreateScheduledNotification(message, title string, color int, channelID string, scheduledAt time.Time) (string, error) {
	id := uuid.New().String()
	_, err := Run(
		`INSERT INTO scheduled_notifications (id, message, title, color, channel_id, scheduled_at, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)`,
		id, message, title, color, channelID, FormatTime(scheduledAt), Now(),
	)
	return id, err
}

// ListPendingNotifications returns pending notifications ordered by due time
func ListPendingNotifications() ([]ScheduledNotification, error) {
	return Select(
		`SELECT `+notificationColumns+` FROM scheduled_notifications
		 WHERE status = 'pending' ORDER BY scheduled_at`,
		nil,
		scanNotification,
	)
}

// GetDueNotifications returns pending notifications due at or before now
func GetDueNotifications(now time.Time) ([]ScheduledNotification, error) {
	return Select(
		`SELECT `+notificationColumns+` FROM scheduled_notifications
		 WHERE status = 'pending' AND scheduled_at <= ? ORDER BY scheduled_at`,
		[]QueryParam{FormatTime(now)},
		scanNotification,
	)
}

// MarkNotificationSent flips a notification to sent
func MarkNotificationSent(id string) error {
	_, err := Run(`UPDATE scheduled_notifications SET status = 'sent' WHERE id = ?`, id)
	return err
}

// CancelScheduledNotification cancels a pending notification.
// Returns whether a pending row existed.
func CancelScheduledNotification(id string) (bool, error) {
	res, err := Run(
		`UPDATE scheduled_notifications SET status = 'cancelled' WHERE id = ? AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
