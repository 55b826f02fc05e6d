package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fortis/internal/nullifier"
	txcontext "fortis/pkg/platform/tx"
)

// Store relies on the (election_id, nullifier) primary key: the insert
// affects a row only for the first registration.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Register(ctx context.Context, electionID string, n nullifier.Nullifier) (bool, error) {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO nullifiers (election_id, nullifier)
		VALUES ($1, $2)
		ON CONFLICT (election_id, nullifier) DO NOTHING`,
		electionID, n[:],
	)
	if err != nil {
		return false, fmt.Errorf("insert nullifier: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *Store) Exists(ctx context.Context, electionID string, n nullifier.Nullifier) (bool, error) {
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM nullifiers WHERE election_id = $1 AND nullifier = $2)`,
		electionID, n[:],
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query nullifier: %w", err)
	}
	return exists, nil
}
