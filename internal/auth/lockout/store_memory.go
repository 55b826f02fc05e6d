package lockout

import (
	"context"
	"sync"
	"time"
)

type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

func (s *InMemoryStore) Get(_ context.Context, identifier string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	return cloneRecord(r), nil
}

func (s *InMemoryStore) RecordFailure(_ context.Context, identifier string, now time.Time, window time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[identifier]
	if !ok || r.windowExpired(now, window) {
		r = &Record{Identifier: identifier, FirstFailedAt: now}
		s.records[identifier] = r
	}
	r.FailureCount++
	r.LastFailureAt = now
	return cloneRecord(r), nil
}

func (s *InMemoryStore) Lock(_ context.Context, identifier string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[identifier]; ok {
		r.LockedUntil = &until
	}
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

func cloneRecord(r *Record) *Record {
	c := *r
	if r.LockedUntil != nil {
		until := *r.LockedUntil
		c.LockedUntil = &until
	}
	return &c
}
