// Package audittest provides audit stores for tests that need to simulate
// storage-level modification of the chain.
package audittest

import (
	"context"
	"sync"

	"fortis/internal/audit"
	"fortis/internal/audit/store/memory"
)

// TamperingStore is an in-memory audit store whose reads can be rewritten
// after the fact, the way an attacker with database access would.
type TamperingStore struct {
	*memory.Store

	mu    sync.Mutex
	edits map[uint64]func(*audit.Entry)
}

func NewTamperingStore() *TamperingStore {
	return &TamperingStore{Store: memory.New(), edits: make(map[uint64]func(*audit.Entry))}
}

// Tamper rewrites the entry at index on every subsequent read. It reports
// whether such an entry is currently stored.
func (s *TamperingStore) Tamper(index uint64, fn func(*audit.Entry)) bool {
	entries, err := s.Store.List(context.Background(), audit.Filter{})
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Index == index {
			s.mu.Lock()
			s.edits[index] = fn
			s.mu.Unlock()
			return true
		}
	}
	return false
}

func (s *TamperingStore) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	entries, err := s.Store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		if fn, ok := s.edits[entries[i].Index]; ok {
			fn(&entries[i])
		}
	}
	return entries, nil
}

func (s *TamperingStore) Last(ctx context.Context) (audit.Entry, bool, error) {
	e, ok, err := s.Store.Last(ctx)
	if err != nil || !ok {
		return e, ok, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn, found := s.edits[e.Index]; found {
		fn(&e)
	}
	return e, ok, nil
}
