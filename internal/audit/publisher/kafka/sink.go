// Package kafka publishes analyzer alerts to a Kafka topic for the
// operations SIEM.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"fortis/internal/audit/analyzer"
)

// Sink produces one record per alert, keyed by the source entry id so
// alerts for the same entry land on the same partition.
type Sink struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// WithProduceTimeout bounds each synchronous produce.
func WithProduceTimeout(d time.Duration) Option {
	return func(s *Sink) { s.timeout = d }
}

func New(brokers []string, topic string, opts ...Option) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka alert sink requires at least one broker")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	s := &Sink{client: client, topic: topic, timeout: 5 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureTopic creates the alert topic if it does not exist yet.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	admin := kadm.NewClient(s.client)
	resp, err := admin.CreateTopics(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, alert analyzer.Alert) error {
	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := &kgo.Record{
		Key:   []byte(alert.EntryID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "severity", Value: []byte(alert.Severity)},
			{Key: "pattern", Value: []byte(alert.Pattern)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.logger.WarnContext(ctx, "kafka alert produce failed",
			"topic", s.topic,
			"alert_id", alert.ID,
			"error", err,
		)
		return fmt.Errorf("produce alert: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}
