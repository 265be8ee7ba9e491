package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Rrens/voice-agent/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS calls (
		id            VARCHAR(64) PRIMARY KEY,
		customer_name VARCHAR(255) NOT NULL DEFAULT '',
		phone_number  VARCHAR(64) NOT NULL DEFAULT '',
		created_at    DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS call_turns (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		call_id    VARCHAR(64) NOT NULL,
		role       ENUM('user', 'assistant') NOT NULL,
		content    TEXT NOT NULL,
		source     VARCHAR(32) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		INDEX idx_call_turns_call_id (call_id, id),
		FOREIGN KEY (call_id) REFERENCES calls (id) ON DELETE CASCADE
	)`,
}

// CallArchive stores calls and their turns in MySQL
type CallArchive struct {
	db *sql.DB
}

// Open connects with a go-sql-driver DSN and ensures the schema exists
func Open(ctx context.Context, dsn string) (*CallArchive, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &CallArchive{db: db}, nil
}

func (a *CallArchive) SaveCall(ctx context.Context, session *domain.Session) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO calls (id, customer_name, phone_number, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			customer_name = VALUES(customer_name),
			phone_number = VALUES(phone_number)
	`, session.ID, session.CustomerName, session.PhoneNumber, session.CreatedAt.UTC())
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
		if _, err := stmt.ExecContext(ctx, callID, string(t.Role), t.Content, string(t.Source), t.CreatedAt.UTC()); err != nil {
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
		var role, source string
		var t domain.Turn
		if err := rows.Scan(&role, &t.Content, &source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = domain.MessageRole(role)
		t.Source = domain.TurnSource(source)
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// Ping verifies the connection is alive
func (a *CallArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *CallArchive) Close() error {
	return a.db.Close()
}
