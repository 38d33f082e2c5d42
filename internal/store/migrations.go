package store

import (
	"database/sql"
	"fmt"
	"log/slog"
)

type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Append new migrations with increasing versions.
var migrations = []Migration{
	{
		Version:     1,
		Description: "key-value table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at TEXT DEFAULT (datetime('now'))
);`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index kv by update time",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_kv_updated ON kv(updated_at);`)
			return err
		},
	},
}

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate applies pending migrations, tracking progress in PRAGMA user_version.
func migrate(conn *sql.DB, log *slog.Logger) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Info("applying migration", slog.Int("version", m.Version), slog.String("description", m.Description))
		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
		// user_version is bumped after commit so a failed step is retried.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}
	return nil
}
