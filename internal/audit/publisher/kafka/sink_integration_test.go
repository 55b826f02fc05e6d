//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"fortis/internal/audit/analyzer"
	"fortis/internal/audit/publisher/kafka"
	"fortis/pkg/testutil/containers"
)

type SinkSuite struct {
	suite.Suite
	broker string
}

func TestSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker
}

func (s *SinkSuite) TestSendPublishesAlert() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "alerts-" + uuid.NewString()
	sink, err := kafka.New([]string{s.broker}, topic)
	s.Require().NoError(err)
	defer sink.Close()
	s.Require().NoError(sink.EnsureTopic(ctx, 1, 1))

	alert := analyzer.Alert{
		ID:        uuid.New(),
		EntryID:   uuid.New(),
		Pattern:   "Security Event",
		Severity:  analyzer.SeverityCritical,
		Message:   "tamper detected",
		Timestamp: time.Now().UTC(),
	}
	s.Require().NoError(sink.Send(ctx, alert))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)

	var got analyzer.Alert
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(alert.ID, got.ID)
	s.Equal(alert.EntryID.String(), string(records[0].Key))
	s.Equal(analyzer.SeverityCritical, got.Severity)
}
