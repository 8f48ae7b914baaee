package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const journalTimeLayout = time.RFC3339Nano

// Session statuses stored in the journal.
const (
	sessionRunning   = "running"
	sessionCompleted = "completed"
	sessionAbandoned = "abandoned"
)

// SessionRecord is one journal row.
type SessionRecord struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
}

// journal is the sqlite history of meditation sessions.
type journal struct {
	db *sql.DB
}

// openJournal opens (or creates) the database at path and applies migrations.
// ":memory:" is accepted for tests.
func openJournal(path string) (*journal, error) {
	if path != ":memory:" {
		path = ExpandPath(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := migrateJournal(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &journal{db: db}, nil
}

func migrateJournal(db *sql.DB) error {
	entries, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(entries)
	for _, name := range entries {
		sqlBytes, readErr := migrationFiles.ReadFile(name)
		if readErr != nil {
			return fmt.Errorf("read migration %s: %w", name, readErr)
		}
		if _, execErr := db.Exec(string(sqlBytes)); execErr != nil {
			return fmt.Errorf("apply migration %s: %w", name, execErr)
		}
	}
	return nil
}

func (j *journal) Close() error {
	return j.db.Close()
}

// Begin records a new running session and returns its id.
func (j *journal) Begin(ctx context.Context, durationMinutes int, at time.Time) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, duration_minutes, status)
		VALUES (?, ?, ?, ?)`,
		id, at.UTC().Format(journalTimeLayout), durationMinutes, sessionRunning,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// Finish closes a running session with status. Finishing a session that is
// no longer running is a no-op.
func (j *journal) Finish(ctx context.Context, id, status string, at time.Time) error {
	if status != sessionCompleted && status != sessionAbandoned {
		return fmt.Errorf("finish session: invalid status %q", status)
	}
	_, err := j.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, ended_at = ?
		WHERE id = ? AND status = ?`,
		status, at.UTC().Format(journalTimeLayout), id, sessionRunning,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (j *journal) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		return nil, errors.New("recent sessions: limit must be > 0")
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, duration_minutes, status
		FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec     SessionRecord
			started string
			ended   sql.NullString
		)
		if err := rows.Scan(&rec.ID, &started, &ended, &rec.DurationMinutes, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if rec.StartedAt, err = time.Parse(journalTimeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if ended.Valid {
			t, err := time.Parse(journalTimeLayout, ended.String)
			if err != nil {
				return nil, fmt.Errorf("parse ended_at: %w", err)
			}
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
