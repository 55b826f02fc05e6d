package memory

import (
	"context"
	"sync"

	"fortis/internal/nullifier"
)

// Store is an in-process set per election guarded by one mutex.
type Store struct {
	mu   sync.Mutex
	sets map[string]map[nullifier.Nullifier]struct{}
}

func New() *Store {
	return &Store{sets: make(map[string]map[nullifier.Nullifier]struct{})}
}

func (s *Store) Register(_ context.Context, electionID string, n nullifier.Nullifier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[electionID]
	if !ok {
		set = make(map[nullifier.Nullifier]struct{})
		s.sets[electionID] = set
	}
	if _, used := set[n]; used {
		return false, nil
	}
	set[n] = struct{}{}
	return true, nil
}

func (s *Store) Exists(_ context.Context, electionID string, n nullifier.Nullifier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[electionID][n]
	return ok, nil
}
