package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rrens/voice-agent/internal/domain"
)

// CallArchive persists calls and their turns for later review
type CallArchive struct {
	db *DB
}

// NewCallArchive creates a new call archive
func NewCallArchive(db *DB) *CallArchive {
	return &CallArchive{db: db}
}

// SaveCall records the call and any turns it already holds
func (a *CallArchive) SaveCall(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO calls (id, customer_name, phone_number, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET customer_name = EXCLUDED.customer_name,
		    phone_number = EXCLUDED.phone_number
	`

	_, err := a.db.Pool.Exec(ctx, query,
		session.ID,
		session.CustomerName,
		session.PhoneNumber,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save call: %w", err)
	}

	return a.AppendTurns(ctx, session.ID, session.Turns)
}

// AppendTurns stores turns in order within one transaction
func (a *CallArchive) AppendTurns(ctx context.Context, callID string, turns []domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	query := `
		INSERT INTO call_turns (call_id, role, content, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	tx, err := a.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range turns {
		batch.Queue(query, callID, string(t.Role), t.Content, string(t.Source), t.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit turns: %w", err)
	}
	return nil
}

// ListTurns returns the archived turns of a call, oldest first
func (a *CallArchive) ListTurns(ctx context.Context, callID string) ([]domain.Turn, error) {
	query := `
		SELECT role, content, source, created_at
		FROM call_turns
		WHERE call_id = $1
		ORDER BY id ASC
	`

	rows, err := a.db.Pool.Query(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var role, source string
		if err := rows.Scan(&role, &t.Content, &source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = domain.MessageRole(role)
		t.Source = domain.TurnSource(source)
		turns = append(turns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	return turns, nil
}

// Close releases the pool
func (a *CallArchive) Close() error {
	a.db.Close()
	return nil
}
