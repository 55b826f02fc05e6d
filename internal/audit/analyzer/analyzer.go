// Package analyzer scans audit entries as they are appended and raises
// alerts for rule matches.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rule pairs a matcher with the severity of the alert it raises.
type Rule struct {
	Name     string
	Matcher  Matcher
	Severity Severity
}

// Alert is derived from a single entry and never mutated.
type Alert struct {
	ID        uuid.UUID `json:"id"`
	EntryID   uuid.UUID `json:"entry_id"`
	Pattern   string    `json:"pattern"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives alerts. Send must not block for long; failures are logged
// and do not affect the append that produced the alert.
type Sink interface {
	Send(ctx context.Context, alert Alert) error
}

// DefaultRules flags repeated authentication failures, error text and
// explicit security keywords.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "Multiple Failed Auth",
			Matcher:  NewThreshold(MustRegexp(`voter_authentication.*"outcome":"(biometric_failure|certificate_failure|locked_out)"`), 3, 5*time.Minute),
			Severity: SeverityHigh,
		},
		{
			Name:     "System Error",
			Matcher:  MustRegexp(`error|exception|failure`),
			Severity: SeverityMedium,
		},
		{
			Name:     "Security Event",
			Matcher:  MustRegexp(`security|tamper|violation`),
			Severity: SeverityCritical,
		},
	}
}

// Analyzer evaluates every rule against each entry it is given.
type Analyzer struct {
	rules  []Rule
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Analyzer)

func WithRules(rules ...Rule) Option {
	return func(a *Analyzer) { a.rules = rules }
}

func WithSinks(sinks ...Sink) Option {
	return func(a *Analyzer) { a.sinks = append(a.sinks, sinks...) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

func WithNow(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:  DefaultRules(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the rule table over one entry and delivers any alerts to the
// sinks before returning them.
func (a *Analyzer) Analyze(ctx context.Context, entryID uuid.UUID, text string) []Alert {
	var alerts []Alert
	for _, rule := range a.rules {
		if !rule.Matcher.Matches(text) {
			continue
		}
		alerts = append(alerts, Alert{
			ID:        uuid.New(),
			EntryID:   entryID,
			Pattern:   rule.Name,
			Severity:  rule.Severity,
			Message:   fmt.Sprintf("pattern %q matched in entry %s", rule.Name, entryID),
			Timestamp: a.now(),
		})
	}
	for _, alert := range alerts {
		for _, sink := range a.sinks {
			if err := sink.Send(ctx, alert); err != nil {
				a.logger.ErrorContext(ctx, "failed to deliver audit alert",
					"alert_id", alert.ID,
					"pattern", alert.Pattern,
					"error", err,
				)
			}
		}
	}
	return alerts
}
