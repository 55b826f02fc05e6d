package memory

import (
	"context"
	"fmt"
	"sync"

	"fortis/internal/audit"
)

// Store keeps the chain in a slice ordered by index.
type Store struct {
	mu         sync.RWMutex
	entries    []audit.Entry
	checkpoint *audit.Checkpoint
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entries []audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := uint64(0)
	if n := len(s.entries); n > 0 {
		next = s.entries[n-1].Index + 1
	}
	for i, e := range entries {
		if next != 0 && e.Index != next+uint64(i) {
			return fmt.Errorf("append out of order: index %d, expected %d", e.Index, next+uint64(i))
		}
	}
	for _, e := range entries {
		s.entries = append(s.entries, cloneEntry(e))
	}
	return nil
}

func (s *Store) List(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		if filter.Matches(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (s *Store) Last(_ context.Context) (audit.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return audit.Entry{}, false, nil
	}
	return cloneEntry(s.entries[len(s.entries)-1]), true, nil
}

func (s *Store) Checkpoint(_ context.Context) (audit.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.checkpoint == nil {
		return audit.Checkpoint{}, false, nil
	}
	return *s.checkpoint, true, nil
}

func (s *Store) Prune(_ context.Context, through uint64, cp audit.Checkpoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(s.entries) && s.entries[n].Index <= through {
		n++
	}
	s.entries = append([]audit.Entry(nil), s.entries[n:]...)
	s.checkpoint = &cp
	return n, nil
}

func cloneEntry(e audit.Entry) audit.Entry {
	e.Payload = append([]byte(nil), e.Payload...)
	return e
}
