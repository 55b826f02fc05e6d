// Package lockout rejects authentication attempts for voters and machines
// that failed too often within the lockout window.
package lockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/requestcontext"
)

// Store persists lockout records. RecordFailure must increment atomically
// and restart the count when the previous window has expired.
type Store interface {
	Get(ctx context.Context, identifier string) (*Record, error)
	RecordFailure(ctx context.Context, identifier string, now time.Time, window time.Duration) (*Record, error)
	Lock(ctx context.Context, identifier string, until time.Time) error
	Clear(ctx context.Context, identifier string) error
}

type Config struct {
	MaxAttempts int
	Duration    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Duration: 300 * time.Second}
}

// Status is the answer to Check.
type Status struct {
	Locked      bool
	LockedUntil time.Time
	Failures    int
	RetryAfter  time.Duration
}

type Service struct {
	store  Store
	logger *slog.Logger
	config Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	svc := &Service{
		store:  store,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check reports whether identifier is currently locked.
func (s *Service) Check(ctx context.Context, identifier string) (Status, error) {
	record, err := s.store.Get(ctx, identifier)
	if err != nil {
		return Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get lockout record")
	}
	now := requestcontext.Now(ctx)
	if !record.IsLockedAt(now) {
		status := Status{}
		if record != nil && !record.windowExpired(now, s.config.Duration) {
			status.Failures = record.FailureCount
		}
		return status, nil
	}
	return Status{
		Locked:      true,
		LockedUntil: *record.LockedUntil,
		Failures:    record.FailureCount,
		RetryAfter:  record.LockedUntil.Sub(now),
	}, nil
}

// RecordFailure counts a failed attempt and locks the identifier once the
// count reaches MaxAttempts inside the window.
func (s *Service) RecordFailure(ctx context.Context, identifier string) (*Record, error) {
	now := requestcontext.Now(ctx)
	current, err := s.store.RecordFailure(ctx, identifier, now, s.config.Duration)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record auth failure")
	}

	if current.FailureCount >= s.config.MaxAttempts && !current.IsLockedAt(now) {
		until := now.Add(s.config.Duration)
		if err := s.store.Lock(ctx, identifier, until); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply lockout")
		}
		current.LockedUntil = &until
		s.logAudit(ctx, "auth_lockout_triggered",
			"identifier", identifier,
			"failures", current.FailureCount,
			"locked_until", until,
		)
	}
	return current, nil
}

// Clear resets the counters after a successful authentication.
func (s *Service) Clear(ctx context.Context, identifier string) error {
	if err := s.store.Clear(ctx, identifier); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear auth failures")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	attrs = append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, attrs...)
}
