//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fortis/internal/audit"
	"fortis/internal/audit/store/postgres"
	"fortis/pkg/requestcontext"
	"fortis/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
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
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_entries", "audit_checkpoint"))
}

func (s *PostgresStoreSuite) TestChainSurvivesStorageRoundTrip() {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 10, 1, 7, 0, 0, 987654321, time.UTC))
	ledger, err := audit.New(ctx, s.store)
	s.Require().NoError(err)

	_, err = ledger.LogEvent(ctx, audit.VoteCast{VoteID: "v1", MachineID: "m1", ElectionID: "e1"})
	s.Require().NoError(err)
	_, err = ledger.LogEvent(ctx, audit.NullifierRejected{ElectionID: "e1", Nullifier: "ff", Reason: "already_used"})
	s.Require().NoError(err)

	entries, err := s.store.List(ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	for _, e := range entries {
		s.True(e.Valid(), "entry %d must verify after a database round trip", e.Index)
	}

	reopened, err := audit.New(ctx, s.store)
	s.Require().NoError(err)
	result, err := reopened.VerifyIntegrity(ctx, audit.Range{})
	s.Require().NoError(err)
	s.True(result.Valid)
}

func (s *PostgresStoreSuite) TestPruneMovesCheckpoint() {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger, err := audit.New(context.Background(), s.store)
	s.Require().NoError(err)
	for i := 0; i < 3; i++ {
		_, err := ledger.LogEvent(requestcontext.WithTime(context.Background(), old), audit.VoteCast{VoteID: "old"})
		s.Require().NoError(err)
	}
	now := requestcontext.WithTime(context.Background(), old.Add(400*24*time.Hour))
	_, err = ledger.LogEvent(now, audit.VoteCast{VoteID: "new"})
	s.Require().NoError(err)

	removed, err := ledger.CleanupOldLogs(now, 365)
	s.Require().NoError(err)
	s.Equal(3, removed)

	cp, ok, err := s.store.Checkpoint(now)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(uint64(4), cp.NextIndex)

	result, err := ledger.VerifyIntegrity(now, audit.Range{})
	s.Require().NoError(err)
	s.True(result.Valid)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	ledger, err := audit.New(ctx, s.store)
	s.Require().NoError(err)
	_, err = ledger.LogEvent(ctx, audit.VoteCast{VoteID: "v"})
	s.Require().NoError(err)
	_, err = ledger.LogEvent(ctx, audit.NullifierRegistered{ElectionID: "e", Nullifier: "aa"})
	s.Require().NoError(err)
	s.Require().NoError(ledger.Flush(ctx))

	entries, err := s.store.List(ctx, audit.Filter{Types: []audit.EventType{audit.TypeNullifierRegistered}})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(uint64(2), entries[0].Index)

	limited, err := s.store.List(ctx, audit.Filter{Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}
