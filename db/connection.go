package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ccdb/ccdb/config"
	"github.com/ccdb/ccdb/log"
	_ "github.com/mattn/go-sqlite3"
)

var (
	db *sql.DB
	mu sync.Mutex
)

// GetDB returns the singleton database connection, opening it at the
// configured path on first use.
func GetDB() *sql.DB {
	mu.Lock()
	defer mu.Unlock()

	if db == nil {
		if err := openLocked(config.Get().DatabasePath); err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
	}
	return db
}

// Open opens (or re-opens) the database at an explicit path. Used by main
// with the configured path and by tests with a temp file.
func Open(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		db.Close()
		db = nil
	}
	return openLocked(path)
}

func openLocked(path string) error {
	if err := ensureDatabaseDirectory(path); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode, foreign keys, and a busy timeout: SQLite works best for us
	// as a single-writer store with readers in WAL.
	dsn := path + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Serialize all access through one connection to avoid file-level
	// contention between concurrent runs.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db = conn
	log.Info().Str("path", path).Msg("database initialized")
	return nil
}

// Close closes the database connection
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// ensureDatabaseDirectory creates the directory for the database file if it doesn't exist
func ensureDatabaseDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Transaction executes a function within a database transaction
func Transaction(fn func(*sql.Tx) error) error {
	tx, err := GetDB().Begin()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
