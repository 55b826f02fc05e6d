// Package audit implements the hash-chained audit ledger. Every entry
// commits to its predecessor, so any mutation of a stored entry breaks
// verification from that entry onward.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fortis/internal/audit/analyzer"
	"fortis/internal/audit/metrics"
	"fortis/pkg/requestcontext"
)

const defaultBufferSize = 256

// Ledger is the single writer for the chain. Appends are serialized under
// mu; reads take the read lock and see persisted plus buffered entries.
type Ledger struct {
	store      Store
	analyzer   *analyzer.Analyzer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	genesis    string
	bufferSize int

	mu        sync.RWMutex
	root      Checkpoint
	nextIndex uint64
	headHash  string
	pending   []Entry

	halted atomic.Bool
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithAnalyzer scans each appended entry.
func WithAnalyzer(a *analyzer.Analyzer) Option {
	return func(l *Ledger) { l.analyzer = a }
}

// WithGenesis sets the label the first entry chains to.
func WithGenesis(label string) Option {
	return func(l *Ledger) { l.genesis = label }
}

// WithBufferSize bounds how many non-critical entries are held before an
// inline flush.
func WithBufferSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.bufferSize = n
		}
	}
}

// New resumes the chain from whatever the store already holds.
func New(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:      store,
		logger:     slog.Default(),
		genesis:    "fortis-genesis",
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(l)
	}

	root, ok, err := store.Checkpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("load audit checkpoint: %w", err)
	}
	if !ok {
		root = Checkpoint{NextIndex: 1, Anchor: GenesisAnchor(l.genesis)}
	}
	l.root = root
	l.nextIndex = root.NextIndex
	l.headHash = root.Anchor

	last, ok, err := store.Last(ctx)
	if err != nil {
		return nil, fmt.Errorf("load audit head: %w", err)
	}
	if ok {
		l.nextIndex = last.Index + 1
		l.headHash = last.Hash
	}
	return l, nil
}

// LogEvent appends an event to the chain. Critical event types, and any
// entries buffered before them, are persisted before it returns; if that
// write fails the entry is not appended and the error must fail the caller.
func (l *Ledger) LogEvent(ctx context.Context, event Event) (uuid.UUID, error) {
	payload, err := canonicalPayload(event)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode audit payload: %w", err)
	}
	eventType := event.EventType()

	l.mu.Lock()
	entry := Entry{
		ID:        uuid.New(),
		Index:     l.nextIndex,
		Type:      eventType,
		Payload:   payload,
		Timestamp: requestcontext.Now(ctx).UTC().Truncate(time.Microsecond),
		PrevHash:  l.headHash,
	}
	entry.Hash = ComputeHash(entry.Type, entry.Payload, entry.Timestamp, entry.PrevHash)

	if eventType.IsCritical() {
		batch := make([]Entry, 0, len(l.pending)+1)
		batch = append(batch, l.pending...)
		batch = append(batch, entry)
		if err := l.persistLocked(ctx, batch); err != nil {
			l.mu.Unlock()
			l.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
				"event_type", string(eventType),
				"error", err,
			)
			return uuid.Nil, fmt.Errorf("audit persistence failed: %w", err)
		}
		l.pending = nil
	} else {
		l.pending = append(l.pending, entry)
		if len(l.pending) >= l.bufferSize {
			if err := l.persistLocked(ctx, l.pending); err != nil {
				l.logger.WarnContext(ctx, "audit buffer flush failed, entries kept",
					"buffered", len(l.pending),
					"error", err,
				)
			} else {
				l.pending = nil
			}
		}
	}
	l.nextIndex++
	l.headHash = entry.Hash
	buffered := len(l.pending)
	l.mu.Unlock()

	l.metrics.IncAppended(string(eventType))
	l.metrics.SetBuffered(buffered)

	if l.analyzer != nil {
		for _, alert := range l.analyzer.Analyze(ctx, entry.ID, entry.Text()) {
			l.metrics.IncAlert(string(alert.Severity))
		}
	}
	return entry.ID, nil
}

func (l *Ledger) persistLocked(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()
	if err := l.store.Append(ctx, entries); err != nil {
		l.metrics.IncPersistFailures()
		return err
	}
	l.metrics.ObserveFlush(time.Since(start))
	return nil
}

// Flush persists every buffered entry.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.persistLocked(ctx, l.pending); err != nil {
		return fmt.Errorf("flush audit buffer: %w", err)
	}
	l.pending = nil
	l.metrics.SetBuffered(0)
	return nil
}

// Run flushes on every tick until ctx is cancelled, then flushes once more.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := l.Flush(flushCtx)
			cancel()
			if err != nil {
				l.logger.Error("final audit flush failed", "error", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := l.Flush(ctx); err != nil {
				l.logger.WarnContext(ctx, "periodic audit flush failed", "error", err)
			}
		}
	}
}

// Logs returns entries matching filter in index order.
func (l *Ledger) Logs(ctx context.Context, filter Filter) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entriesLocked(ctx, filter)
}

// LogsByTimeRange returns entries with start <= timestamp <= end.
func (l *Ledger) LogsByTimeRange(ctx context.Context, start, end time.Time) ([]Entry, error) {
	return l.Logs(ctx, Filter{Since: start, Until: end})
}

func (l *Ledger) entriesLocked(ctx context.Context, filter Filter) ([]Entry, error) {
	stored, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	for _, e := range l.pending {
		if filter.Limit > 0 && len(stored) >= filter.Limit {
			break
		}
		if filter.Matches(e) {
			stored = append(stored, e)
		}
	}
	return stored, nil
}

// Halted reports whether an integrity violation has stopped automated
// reconciliation.
func (l *Ledger) Halted() bool {
	return l.halted.Load()
}

// CleanupOldLogs removes the oldest entries whose timestamps fall before the
// retention window. Only a contiguous prefix is removed; the hash of the last
// removed entry becomes the new chain root so the rest still verifies.
func (l *Ledger) CleanupOldLogs(ctx context.Context, retentionDays int) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-time.Duration(retentionDays) * 24 * time.Hour)

	l.mu.Lock()
	if err := l.persistLocked(ctx, l.pending); err != nil {
		l.mu.Unlock()
		return 0, fmt.Errorf("flush before prune: %w", err)
	}
	l.pending = nil

	entries, err := l.store.List(ctx, Filter{})
	if err != nil {
		l.mu.Unlock()
		return 0, fmt.Errorf("list audit entries: %w", err)
	}
	var last *Entry
	for i := range entries {
		if !entries[i].Timestamp.Before(cutoff) {
			break
		}
		last = &entries[i]
	}
	if last == nil {
		l.mu.Unlock()
		return 0, nil
	}

	root := Checkpoint{NextIndex: last.Index + 1, Anchor: last.Hash}
	removed, err := l.store.Prune(ctx, last.Index, root)
	if err != nil {
		l.mu.Unlock()
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	l.root = root
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "audit ledger pruned",
		"log_type", "audit",
		"event", string(TypeLedgerPruned),
		"removed", removed,
		"through_index", last.Index,
	)
	if _, err := l.LogEvent(ctx, LedgerPruned{Removed: removed, Through: last.Index, NewAnchor: root.Anchor}); err != nil {
		return removed, err
	}
	return removed, nil
}
