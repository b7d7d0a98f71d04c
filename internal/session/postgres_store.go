package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const createSlotsTable = `
	CREATE TABLE IF NOT EXISTS session_slots (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// PostgresStore keeps the token in the session_slots table, keyed by profile and slot.
type PostgresStore struct {
	db   *sql.DB
	name string
}

// NewPostgresStore stores the token under profile + SlotName.
func NewPostgresStore(db *sql.DB, profile string) *PostgresStore {
	return &PostgresStore{db: db, name: profile + SlotName}
}

// EnsureSchema creates the slots table if needed.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSlotsTable); err != nil {
		return fmt.Errorf("failed to create session_slots: %w", err)
	}
	return nil
}

func (s *PostgresStore) Token(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_slots WHERE name = $1`, s.name).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return token, nil
}

func (s *PostgresStore) SetToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_slots (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, s.name, token)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_slots WHERE name = $1`, s.name); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
