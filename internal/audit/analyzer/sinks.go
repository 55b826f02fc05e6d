package analyzer

import (
	"context"
	"log/slog"
	"sync"
)

// Collector keeps alerts in memory for the report endpoint and tests.
type Collector struct {
	mu     sync.RWMutex
	alerts []Alert
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Send(_ context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	return nil
}

// Alerts returns a copy of everything collected so far.
func (c *Collector) Alerts() []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// LogSink writes alerts as structured log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, alert Alert) error {
	level := slog.LevelWarn
	if alert.Severity == SeverityCritical || alert.Severity == SeverityHigh {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "audit alert",
		"log_type", "audit",
		"event", "audit_alert",
		"alert_id", alert.ID,
		"entry_id", alert.EntryID,
		"pattern", alert.Pattern,
		"severity", string(alert.Severity),
	)
	return nil
}
