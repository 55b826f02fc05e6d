// Package postgres persists sync jobs and queued votes in sync_jobs and
// sync_votes. Queue order is the sync_votes sequence.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fortis/internal/votesync"
	"fortis/pkg/platform/sentinel"
	txcontext "fortis/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const voteColumns = `id, machine_id, election_id, candidate_id, encrypted_content, encryption_key_id,
	signature, zk_proof, cast_at, sync_status, attempts, log_hash, failure_reason, retryable, escalated, updated_at`

func (s *Store) SaveVote(ctx context.Context, v votesync.EncryptedVote) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sync_votes (`+voteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		v.ID, v.MachineID, v.ElectionID, v.CandidateID, v.EncryptedContent, v.EncryptionKeyID,
		v.Signature, v.ZKProof, v.CastAt, string(v.SyncStatus), v.Attempts, v.LogHash,
		v.FailureReason, v.Retryable, v.Escalated, v.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("vote %s: %w", v.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert sync vote: %w", err)
	}
	return nil
}

// UpdateVote writes only the sync fields; the ballot itself is immutable.
func (s *Store) UpdateVote(ctx context.Context, v votesync.EncryptedVote) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE sync_votes
		SET sync_status = $2, attempts = $3, log_hash = $4, failure_reason = $5,
			retryable = $6, escalated = $7, updated_at = $8
		WHERE id = $1`,
		v.ID, string(v.SyncStatus), v.Attempts, v.LogHash, v.FailureReason, v.Retryable, v.Escalated, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update sync vote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vote %s: %w", v.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) GetVote(ctx context.Context, id uuid.UUID) (votesync.EncryptedVote, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM sync_votes WHERE id = $1`, id)
	v, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return votesync.EncryptedVote{}, sentinel.ErrNotFound
	}
	return v, err
}

func voteFilter(machineID string, statuses []votesync.VoteStatus) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if machineID != "" {
		args = append(args, machineID)
		clauses = append(clauses, fmt.Sprintf("machine_id = $%d", len(args)))
	}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		args = append(args, pq.Array(names))
		clauses = append(clauses, fmt.Sprintf("sync_status = ANY($%d)", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) ListVotes(ctx context.Context, machineID string, statuses ...votesync.VoteStatus) ([]votesync.EncryptedVote, error) {
	where, args := voteFilter(machineID, statuses)
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+voteColumns+` FROM sync_votes`+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync votes: %w", err)
	}
	defer rows.Close()

	var out []votesync.EncryptedVote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync votes: %w", err)
	}
	return out, nil
}

func (s *Store) CountVotes(ctx context.Context, machineID string, statuses ...votesync.VoteStatus) (int, error) {
	where, args := voteFilter(machineID, statuses)
	var n int
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_votes`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sync votes: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteConfirmedVotes(ctx context.Context, before time.Time) (int, error) {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM sync_votes WHERE sync_status = $1 AND updated_at < $2`,
		string(votesync.VoteConfirmed), before)
	if err != nil {
		return 0, fmt.Errorf("delete confirmed votes: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) SaveJob(ctx context.Context, j votesync.SyncJob) error {
	errs := j.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sync_jobs (id, machine_id, sync_type, status, force_full, started_at, completed_at, votes_synced, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			votes_synced = EXCLUDED.votes_synced,
			errors = EXCLUDED.errors`,
		j.ID, j.MachineID, string(j.Type), string(j.Status), j.ForceFull, j.StartedAt,
		j.CompletedAt, j.VotesSynced, pq.Array(errs),
	)
	if err != nil {
		return fmt.Errorf("upsert sync job: %w", err)
	}
	return nil
}

const jobColumns = `id, machine_id, sync_type, status, force_full, started_at, completed_at, votes_synced, errors`

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (votesync.SyncJob, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+jobColumns+` FROM sync_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return votesync.SyncJob{}, sentinel.ErrNotFound
	}
	return j, err
}

func (s *Store) ListJobs(ctx context.Context, statuses ...votesync.JobStatus) ([]votesync.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs`
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		args = append(args, pq.Array(names))
		query += ` WHERE status = ANY($1)`
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query+` ORDER BY started_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync jobs: %w", err)
	}
	defer rows.Close()

	var out []votesync.SyncJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync jobs: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteTerminalJobs(ctx context.Context, before time.Time) (int, error) {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM sync_jobs WHERE status = ANY($1) AND completed_at < $2`,
		pq.Array([]string{string(votesync.JobCompleted), string(votesync.JobFailed)}), before)
	if err != nil {
		return 0, fmt.Errorf("delete terminal sync jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVote(row scanner) (votesync.EncryptedVote, error) {
	var (
		v      votesync.EncryptedVote
		status string
	)
	err := row.Scan(&v.ID, &v.MachineID, &v.ElectionID, &v.CandidateID, &v.EncryptedContent, &v.EncryptionKeyID,
		&v.Signature, &v.ZKProof, &v.CastAt, &status, &v.Attempts, &v.LogHash, &v.FailureReason,
		&v.Retryable, &v.Escalated, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("scan sync vote: %w", err)
	}
	v.SyncStatus = votesync.VoteStatus(status)
	v.CastAt = v.CastAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}

func scanJob(row scanner) (votesync.SyncJob, error) {
	var (
		j           votesync.SyncJob
		syncType    string
		status      string
		completedAt sql.NullTime
		errs        pq.StringArray
	)
	err := row.Scan(&j.ID, &j.MachineID, &syncType, &status, &j.ForceFull, &j.StartedAt, &completedAt, &j.VotesSynced, &errs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return j, err
		}
		return j, fmt.Errorf("scan sync job: %w", err)
	}
	j.Type = votesync.SyncType(syncType)
	j.Status = votesync.JobStatus(status)
	j.StartedAt = j.StartedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		j.CompletedAt = &t
	}
	j.Errors = []string(errs)
	if j.Errors == nil {
		j.Errors = []string{}
	}
	return j, nil
}
