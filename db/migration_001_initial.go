package db

import (
	"database/sql"
)

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "Initial schema: sessions, pending asks, pending resumes, settings, tasks, lounge",
		Up:          migration001_initial,
	})
}

func migration001_initial(database *sql.DB) error {
	tx, err := database.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			thread_id    TEXT PRIMARY KEY,
			session_id   TEXT NOT NULL UNIQUE,
			working_dir  TEXT,
			model        TEXT,
			origin       TEXT NOT NULL DEFAULT 'discord',
			summary      TEXT,
			created_at   TEXT NOT NULL,
			last_used_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_last_used ON sessions(last_used_at)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_session_id ON sessions(session_id)
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS pending_asks (
			thread_id      TEXT PRIMARY KEY,
			session_id     TEXT,
			questions      TEXT NOT NULL,
			question_index INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL
		)
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS pending_resumes (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id     TEXT NOT NULL UNIQUE,
			session_id    TEXT,
			reason        TEXT NOT NULL DEFAULT '',
			resume_prompt TEXT,
			created_at    TEXT NOT NULL
		)
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			name             TEXT NOT NULL UNIQUE,
			prompt           TEXT NOT NULL,
			interval_seconds INTEGER NOT NULL,
			channel_id       TEXT NOT NULL,
			working_dir      TEXT,
			enabled          INTEGER NOT NULL DEFAULT 1,
			next_run_at      TEXT NOT NULL,
			last_run_at      TEXT,
			created_at       TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(enabled, next_run_at)
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS lounge_messages (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			label     TEXT NOT NULL,
			message   TEXT NOT NULL,
			posted_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}

	return tx.Commit()
}
