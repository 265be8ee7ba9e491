package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Rrens/voice-agent/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS calls (
    id            TEXT PRIMARY KEY,
    customer_name TEXT NOT NULL DEFAULT '',
    phone_number  TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS call_turns (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    call_id    TEXT NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
    role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content    TEXT NOT NULL,
    source     TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_turns_call_id ON call_turns (call_id, id);
`

// CallArchive is a single-file call archive for deployments without Postgres
type CallArchive struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path and ensures the schema
func Open(ctx context.Context, path string) (*CallArchive, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &CallArchive{db: db}, nil
}

func (a *CallArchive) SaveCall(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO calls (id, customer_name, phone_number, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET customer_name = excluded.customer_name,
		    phone_number = excluded.phone_number
	`

	_, err := a.db.ExecContext(ctx, query,
		session.ID,
		session.CustomerName,
		session.PhoneNumber,
		session.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save call: %w", err)
	}

	return a.AppendTurns(ctx, session.ID, session.Turns)
}

func (a *CallArchive) AppendTurns(ctx context.Context, callID string, turns []domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO call_turns (call_id, role, content, source, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		_, err := stmt.ExecContext(ctx, callID, string(t.Role), t.Content, string(t.Source),
			t.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to append turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turns: %w", err)
	}
	return nil
}

func (a *CallArchive) ListTurns(ctx context.Context, callID string) ([]domain.Turn, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT role, content, source, created_at
		FROM call_turns
		WHERE call_id = ?
		ORDER BY id ASC
	`, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var role, source, createdAt string
		var t domain.Turn
		if err := rows.Scan(&role, &t.Content, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = domain.MessageRole(role)
		t.Source = domain.TurnSource(source)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		turns = append(turns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	return turns, nil
}

// Ping verifies the database file is still reachable
func (a *CallArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the connection
func (a *CallArchive) Close() error {
	return a.db.Close()
}
