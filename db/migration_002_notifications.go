package db

import (
	"database/sql"
)

func init() {
	RegisterMigration(Migration{
		Version:     2,
		Description: "Scheduled notifications for the HTTP API",
		Up:          migration002_notifications,
	})
}

func migration002_notifications(database *sql.DB) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS scheduled_notifications (
			id           TEXT PRIMARY KEY,
			message      TEXT NOT NULL,
			title        TEXT,
			color        INTEGER,
			channel_id   TEXT,
			scheduled_at TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   TEXT NOT NULL
		)
	`)
	return err
}
