package lockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists lockout records in PostgreSQL.
// This store is pure I/O; lock decisions belong in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, identifier string) (*Record, error) {
	query := `
		SELECT identifier, failure_count, first_failed_at, last_failure_at, locked_until
		FROM auth_lockouts
		WHERE identifier = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auth lockout: %w", err)
	}
	return record, nil
}

// RecordFailure increments in a single upsert so concurrent failures cannot
// slip past the threshold. A window that started before now-window restarts
// at one and drops any expired lock.
func (s *PostgresStore) RecordFailure(ctx context.Context, identifier string, now time.Time, window time.Duration) (*Record, error) {
	query := `
		INSERT INTO auth_lockouts (identifier, failure_count, first_failed_at, last_failure_at, locked_until)
		VALUES ($1, 1, $2, $2, NULL)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = CASE WHEN auth_lockouts.first_failed_at < $3 THEN 1 ELSE auth_lockouts.failure_count + 1 END,
			locked_until = CASE WHEN auth_lockouts.first_failed_at < $3 THEN NULL ELSE auth_lockouts.locked_until END,
			first_failed_at = CASE WHEN auth_lockouts.first_failed_at < $3 THEN $2 ELSE auth_lockouts.first_failed_at END,
			last_failure_at = $2
		RETURNING identifier, failure_count, first_failed_at, last_failure_at, locked_until
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, identifier, now, now.Add(-window)))
	if err != nil {
		return nil, fmt.Errorf("record auth failure: %w", err)
	}
	return record, nil
}

// Lock only moves the lock forward.
func (s *PostgresStore) Lock(ctx context.Context, identifier string, until time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auth_lockouts
		SET locked_until = $2
		WHERE identifier = $1
		  AND (locked_until IS NULL OR locked_until < $2)`,
		identifier, until,
	)
	if err != nil {
		return fmt.Errorf("apply auth lockout: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_lockouts WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("clear auth lockout: %w", err)
	}
	return nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*Record, error) {
	var record Record
	var lockedUntil sql.NullTime
	if err := row.Scan(&record.Identifier, &record.FailureCount, &record.FirstFailedAt, &record.LastFailureAt, &lockedUntil); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		until := lockedUntil.Time
		record.LockedUntil = &until
	}
	return &record, nil
}
