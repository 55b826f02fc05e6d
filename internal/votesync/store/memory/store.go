// Package memory is an in-process votesync.Store for offline machines and
// tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fortis/internal/votesync"
	"fortis/pkg/platform/sentinel"
)

type voteRecord struct {
	seq  uint64
	vote votesync.EncryptedVote
}

type Store struct {
	mu    sync.RWMutex
	seq   uint64
	votes map[uuid.UUID]*voteRecord
	jobs  map[uuid.UUID]votesync.SyncJob
}

func New() *Store {
	return &Store{
		votes: make(map[uuid.UUID]*voteRecord),
		jobs:  make(map[uuid.UUID]votesync.SyncJob),
	}
}

func (s *Store) SaveVote(_ context.Context, vote votesync.EncryptedVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.votes[vote.ID]; ok {
		return fmt.Errorf("vote %s: %w", vote.ID, sentinel.ErrConflict)
	}
	s.seq++
	s.votes[vote.ID] = &voteRecord{seq: s.seq, vote: cloneVote(vote)}
	return nil
}

func (s *Store) UpdateVote(_ context.Context, vote votesync.EncryptedVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.votes[vote.ID]
	if !ok {
		return fmt.Errorf("vote %s: %w", vote.ID, sentinel.ErrNotFound)
	}
	rec.vote.SyncStatus = vote.SyncStatus
	rec.vote.Attempts = vote.Attempts
	rec.vote.LogHash = vote.LogHash
	rec.vote.FailureReason = vote.FailureReason
	rec.vote.Retryable = vote.Retryable
	rec.vote.Escalated = vote.Escalated
	rec.vote.UpdatedAt = vote.UpdatedAt
	return nil
}

func (s *Store) GetVote(_ context.Context, id uuid.UUID) (votesync.EncryptedVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.votes[id]
	if !ok {
		return votesync.EncryptedVote{}, sentinel.ErrNotFound
	}
	return cloneVote(rec.vote), nil
}

func (s *Store) ListVotes(_ context.Context, machineID string, statuses ...votesync.VoteStatus) ([]votesync.EncryptedVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.match(machineID, statuses)
	out := make([]votesync.EncryptedVote, 0, len(recs))
	for _, rec := range recs {
		out = append(out, cloneVote(rec.vote))
	}
	return out, nil
}

func (s *Store) CountVotes(_ context.Context, machineID string, statuses ...votesync.VoteStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(machineID, statuses)), nil
}

func (s *Store) match(machineID string, statuses []votesync.VoteStatus) []*voteRecord {
	var out []*voteRecord
	for _, rec := range s.votes {
		if machineID != "" && rec.vote.MachineID != machineID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, rec.vote.SyncStatus) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func hasStatus(statuses []votesync.VoteStatus, st votesync.VoteStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s *Store) DeleteConfirmedVotes(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.votes {
		if rec.vote.SyncStatus == votesync.VoteConfirmed && rec.vote.UpdatedAt.Before(before) {
			delete(s.votes, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) SaveJob(_ context.Context, job votesync.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) GetJob(_ context.Context, id uuid.UUID) (votesync.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return votesync.SyncJob{}, sentinel.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *Store) ListJobs(_ context.Context, statuses ...votesync.JobStatus) ([]votesync.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []votesync.SyncJob
	for _, job := range s.jobs {
		if len(statuses) > 0 && !hasJobStatus(statuses, job.Status) {
			continue
		}
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func hasJobStatus(statuses []votesync.JobStatus, st votesync.JobStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s *Store) DeleteTerminalJobs(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(before) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func cloneVote(v votesync.EncryptedVote) votesync.EncryptedVote {
	out := v
	out.EncryptedContent = append([]byte(nil), v.EncryptedContent...)
	out.Signature = append([]byte(nil), v.Signature...)
	out.ZKProof = append([]byte(nil), v.ZKProof...)
	return out
}
