package audit

import (
	"context"
	"time"
)

// Filter selects entries for reads and exports. Zero values match everything.
type Filter struct {
	Types []EventType
	Since time.Time
	Until time.Time
	Limit int
}

// Matches applies the filter to a single entry (Limit is applied by callers).
func (f Filter) Matches(e Entry) bool {
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Store persists the chain. Entries are appended in index order and read
// back in index order.
type Store interface {
	Append(ctx context.Context, entries []Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	// Last returns the newest entry, used to resume the chain head on start.
	Last(ctx context.Context) (Entry, bool, error)
	Checkpoint(ctx context.Context) (Checkpoint, bool, error)
	// Prune removes every entry with Index <= through and records cp as the
	// new chain root in one step.
	Prune(ctx context.Context, through uint64, cp Checkpoint) (int, error)
}
