//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fortis/internal/votesync"
	"fortis/internal/votesync/store/postgres"
	"fortis/pkg/platform/sentinel"
	"fortis/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.now = time.Date(2026, 10, 4, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "sync_votes", "sync_jobs"))
}

func (s *PostgresStoreSuite) vote(machineID string) votesync.EncryptedVote {
	return votesync.EncryptedVote{
		ID:               uuid.New(),
		MachineID:        machineID,
		ElectionID:       "e-2026",
		CandidateID:      "22",
		EncryptedContent: []byte{0x00, 0xff, 0x10},
		EncryptionKeyID:  "key-1",
		Signature:        []byte("sig"),
		ZKProof:          []byte("proof"),
		CastAt:           s.now,
		SyncStatus:       votesync.VotePending,
		UpdatedAt:        s.now,
	}
}

func (s *PostgresStoreSuite) TestVotesKeepQueueOrder() {
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		v := s.vote("urna-1")
		s.Require().NoError(s.store.SaveVote(ctx, v))
		ids = append(ids, v.ID)
	}
	s.Require().NoError(s.store.SaveVote(ctx, s.vote("urna-2")))

	votes, err := s.store.ListVotes(ctx, "urna-1", votesync.VotePending)
	s.Require().NoError(err)
	s.Require().Len(votes, 5)
	for i, v := range votes {
		s.Equal(ids[i], v.ID)
		s.Equal([]byte{0x00, 0xff, 0x10}, v.EncryptedContent)
	}

	all, err := s.store.CountVotes(ctx, "")
	s.Require().NoError(err)
	s.Equal(6, all)
}

func (s *PostgresStoreSuite) TestDuplicateVoteConflicts() {
	ctx := context.Background()
	v := s.vote("urna-1")
	s.Require().NoError(s.store.SaveVote(ctx, v))
	err := s.store.SaveVote(ctx, v)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *PostgresStoreSuite) TestUpdateVoteAndPurge() {
	ctx := context.Background()
	v := s.vote("urna-1")
	s.Require().NoError(s.store.SaveVote(ctx, v))

	v.SyncStatus = votesync.VoteConfirmed
	v.LogHash = "abc"
	v.UpdatedAt = s.now.Add(time.Hour)
	s.Require().NoError(s.store.UpdateVote(ctx, v))

	got, err := s.store.GetVote(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(votesync.VoteConfirmed, got.SyncStatus)
	s.Equal("abc", got.LogHash)
	s.True(got.UpdatedAt.Equal(v.UpdatedAt))

	n, err := s.store.DeleteConfirmedVotes(ctx, s.now)
	s.Require().NoError(err)
	s.Zero(n)
	n, err = s.store.DeleteConfirmedVotes(ctx, s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.GetVote(ctx, v.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestJobsUpsert() {
	ctx := context.Background()
	job := votesync.SyncJob{
		ID:        uuid.New(),
		MachineID: "urna-1",
		Type:      votesync.SyncFull,
		Status:    votesync.JobPending,
		StartedAt: s.now,
		Errors:    []string{},
	}
	s.Require().NoError(s.store.SaveJob(ctx, job))

	done := s.now.Add(time.Minute)
	job.Status = votesync.JobFailed
	job.CompletedAt = &done
	job.VotesSynced = 3
	job.Errors = []string{"vote x: insufficient_consensus"}
	s.Require().NoError(s.store.SaveJob(ctx, job))

	got, err := s.store.GetJob(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(votesync.JobFailed, got.Status)
	s.Equal(3, got.VotesSynced)
	s.Equal(job.Errors, got.Errors)
	s.Require().NotNil(got.CompletedAt)
	s.True(got.CompletedAt.Equal(done))

	terminal, err := s.store.ListJobs(ctx, votesync.JobFailed, votesync.JobCompleted)
	s.Require().NoError(err)
	s.Len(terminal, 1)

	n, err := s.store.DeleteTerminalJobs(ctx, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.GetJob(ctx, job.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
