//go:build integration

package lockout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fortis/internal/auth/lockout"
	"fortis/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *lockout.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = lockout.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "auth_lockouts"))
}

func (s *PostgresStoreSuite) TestConcurrentFailuresAreCounted() {
	ctx := context.Background()
	now := time.Date(2026, 10, 4, 8, 0, 0, 0, time.UTC)
	const attempts = 20

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.RecordFailure(ctx, "voter:1", now, 5*time.Minute)
			s.NoError(err)
		}()
	}
	wg.Wait()

	record, err := s.store.Get(ctx, "voter:1")
	s.Require().NoError(err)
	s.Equal(attempts, record.FailureCount)
}

func (s *PostgresStoreSuite) TestWindowRestartClearsLock() {
	ctx := context.Background()
	now := time.Date(2026, 10, 4, 8, 0, 0, 0, time.UTC)

	_, err := s.store.RecordFailure(ctx, "machine:9", now, 5*time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Lock(ctx, "machine:9", now.Add(5*time.Minute)))

	record, err := s.store.Get(ctx, "machine:9")
	s.Require().NoError(err)
	s.True(record.IsLockedAt(now.Add(time.Minute)))

	later := now.Add(10 * time.Minute)
	record, err = s.store.RecordFailure(ctx, "machine:9", later, 5*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, record.FailureCount)
	s.Nil(record.LockedUntil)

	s.Require().NoError(s.store.Clear(ctx, "machine:9"))
	record, err = s.store.Get(ctx, "machine:9")
	s.Require().NoError(err)
	s.Nil(record)
}
