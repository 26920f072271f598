// Package history records pipeline runs and comparisons in SQLite.
//
// Each run stores its summary, the artifact paths it produced and one row
// per accepted detection. Comparisons store a row per side plus the
// comparison record linking them.
package history

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with serialised writes.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		variant TEXT NOT NULL,
		model_name TEXT NOT NULL,
		confidence_threshold REAL NOT NULL,
		overlap_threshold REAL NOT NULL,
		total_detections INTEGER NOT NULL,
		highest_confidence REAL NOT NULL,
		annotated_path TEXT NOT NULL DEFAULT '',
		mask_path TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		x1 REAL NOT NULL,
		y1 REAL NOT NULL,
		x2 REAL NOT NULL,
		y2 REAL NOT NULL,
		confidence REAL NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS comparisons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_run_id INTEGER NOT NULL,
		second_run_id INTEGER NOT NULL,
		detection_delta INTEGER NOT NULL,
		confidence_delta REAL NOT NULL,
		interpretation TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (first_run_id) REFERENCES runs(id) ON DELETE CASCADE,
		FOREIGN KEY (second_run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_variant ON runs(variant);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_run_detections_run_id ON run_detections(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_detections_label ON run_detections(label);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
