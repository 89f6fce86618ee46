// internal/history/db.go

// Package history keeps a SQLite log of alert runs.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/signalnine/twiliot/internal/protocol"
)

// DB wraps SQLite connection
type DB struct {
	db *sql.DB
}

// NewDB opens or creates the history database
func NewDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS alert_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		max_downtime TEXT NOT NULL,
		assets_checked INTEGER NOT NULL,
		offline_count INTEGER NOT NULL,
		action TEXT NOT NULL,
		alert_file TEXT,
		recipient TEXT,
		message_sid TEXT,
		message_status TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_alert_runs_timestamp ON alert_runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_alert_runs_action ON alert_runs(action);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertRun stores a run, assigning a run id when it has none
func (d *DB) InsertRun(r *protocol.AlertRun) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}

	res, err := d.db.Exec(`
		INSERT INTO alert_runs (run_id, timestamp, max_downtime, assets_checked, offline_count,
			action, alert_file, recipient, message_sid, message_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Timestamp.UTC().Format(time.RFC3339Nano), r.MaxDowntime, r.AssetsChecked, r.OfflineCount,
		r.Action, nullable(r.AlertFile), nullable(r.Recipient), nullable(r.MessageSID), nullable(r.MessageStatus))
	if err != nil {
		return err
	}

	r.ID, err = res.LastInsertId()
	return err
}

// Recent returns the newest runs first
func (d *DB) Recent(limit int) ([]protocol.AlertRun, error) {
	rows, err := d.db.Query(`
		SELECT id, run_id, timestamp, max_downtime, assets_checked, offline_count,
			action, alert_file, recipient, message_sid, message_status, created_at
		FROM alert_runs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ActionCounts returns the number of runs per action
func (d *DB) ActionCounts() (map[string]int, error) {
	rows, err := d.db.Query(`
		SELECT action, COUNT(*) FROM alert_runs GROUP BY action
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]protocol.AlertRun, error) {
	var runs []protocol.AlertRun
	for rows.Next() {
		var r protocol.AlertRun
		var tsStr, createdStr string
		var alertFile, recipient, sid, status sql.NullString

		err := rows.Scan(&r.ID, &r.RunID, &tsStr, &r.MaxDowntime, &r.AssetsChecked, &r.OfflineCount,
			&r.Action, &alertFile, &recipient, &sid, &status, &createdStr)
		if err != nil {
			return nil, err
		}

		r.Timestamp, _ = time.Parse(time.RFC3339Nano, tsStr)
		r.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdStr)
		r.AlertFile = alertFile.String
		r.Recipient = recipient.String
		r.MessageSID = sid.String
		r.MessageStatus = status.String

		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
