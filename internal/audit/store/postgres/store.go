package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"fortis/internal/audit"
	txcontext "fortis/pkg/platform/tx"
)

// Store persists the chain in audit_entries and the chain root in
// audit_checkpoint.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts a batch in one transaction so a failed flush leaves no
// partial chain behind.
func (s *Store) Append(ctx context.Context, entries []audit.Entry) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.Exec(ctx, s.db)
		for _, e := range entries {
			_, err := exec.ExecContext(ctx, `
				INSERT INTO audit_entries (id, idx, event_type, payload, created_at, prev_hash, hash)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				e.ID, int64(e.Index), string(e.Type), e.Payload, e.Timestamp, e.PrevHash, e.Hash,
			)
			if err != nil {
				return fmt.Errorf("insert audit entry %d: %w", e.Index, err)
			}
		}
		return nil
	})
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		clauses = append(clauses, fmt.Sprintf("event_type = ANY($%d)", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT id, idx, event_type, payload, created_at, prev_hash, hash FROM audit_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY idx"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func (s *Store) Last(ctx context.Context) (audit.Entry, bool, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, idx, event_type, payload, created_at, prev_hash, hash
		FROM audit_entries ORDER BY idx DESC LIMIT 1`)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Entry{}, false, nil
	}
	if err != nil {
		return audit.Entry{}, false, err
	}
	return e, true, nil
}

func (s *Store) Checkpoint(ctx context.Context) (audit.Checkpoint, bool, error) {
	var (
		cp   audit.Checkpoint
		next int64
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT next_index, anchor FROM audit_checkpoint WHERE id = 1`).Scan(&next, &cp.Anchor)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Checkpoint{}, false, nil
	}
	if err != nil {
		return audit.Checkpoint{}, false, fmt.Errorf("load audit checkpoint: %w", err)
	}
	cp.NextIndex = uint64(next)
	return cp, true, nil
}

// Prune deletes the prefix and moves the checkpoint in the same transaction.
func (s *Store) Prune(ctx context.Context, through uint64, cp audit.Checkpoint) (int, error) {
	var removed int64
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.Exec(ctx, s.db)
		res, err := exec.ExecContext(ctx, `DELETE FROM audit_entries WHERE idx <= $1`, int64(through))
		if err != nil {
			return fmt.Errorf("delete audit entries: %w", err)
		}
		if removed, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO audit_checkpoint (id, next_index, anchor) VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET next_index = EXCLUDED.next_index, anchor = EXCLUDED.anchor`,
			int64(cp.NextIndex), cp.Anchor,
		)
		if err != nil {
			return fmt.Errorf("store audit checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (audit.Entry, error) {
	var (
		e         audit.Entry
		idx       int64
		eventType string
	)
	if err := row.Scan(&e.ID, &idx, &eventType, &e.Payload, &e.Timestamp, &e.PrevHash, &e.Hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.Entry{}, err
		}
		return audit.Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	e.Index = uint64(idx)
	e.Type = audit.EventType(eventType)
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
