package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fortis/internal/nullifier"
)

const keyPrefix = "nullifiers:"

// Store keeps one Redis set per election. SADD reports 1 only to the first
// caller adding a member, which makes it the test-and-set.
type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Register(ctx context.Context, electionID string, n nullifier.Nullifier) (bool, error) {
	added, err := s.client.SAdd(ctx, keyPrefix+electionID, n[:]).Result()
	if err != nil {
		return false, fmt.Errorf("sadd nullifier: %w", err)
	}
	return added == 1, nil
}

func (s *Store) Exists(ctx context.Context, electionID string, n nullifier.Nullifier) (bool, error) {
	ok, err := s.client.SIsMember(ctx, keyPrefix+electionID, n[:]).Result()
	if err != nil {
		return false, fmt.Errorf("sismember nullifier: %w", err)
	}
	return ok, nil
}
