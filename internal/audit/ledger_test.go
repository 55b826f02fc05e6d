package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fortis/internal/audit"
	"fortis/internal/audit/analyzer"
	"fortis/internal/audit/audittest"
	"fortis/internal/audit/store/memory"
	"fortis/pkg/requestcontext"
)

type flakyStore struct {
	*audittest.TamperingStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyStore) Append(ctx context.Context, entries []audit.Entry) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.TamperingStore.Append(ctx, entries)
}

type LedgerSuite struct {
	suite.Suite
	store  *flakyStore
	ledger *audit.Ledger
	ctx    context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &flakyStore{TamperingStore: audittest.NewTamperingStore()}
	ledger, err := audit.New(s.ctx, s.store, audit.WithGenesis("test-genesis"))
	s.Require().NoError(err)
	s.ledger = ledger
}

func (s *LedgerSuite) stored() []audit.Entry {
	entries, err := s.store.List(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	return entries
}

func (s *LedgerSuite) TestChainStartsAtGenesisAnchor() {
	_, err := s.ledger.LogEvent(s.ctx, audit.VoteCast{VoteID: "v1", MachineID: "m1", ElectionID: "e1"})
	s.Require().NoError(err)
	_, err = s.ledger.LogEvent(s.ctx, audit.VoteCast{VoteID: "v2", MachineID: "m1", ElectionID: "e1"})
	s.Require().NoError(err)

	entries, err := s.ledger.Logs(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	s.Equal(audit.GenesisAnchor("test-genesis"), entries[0].PrevHash)
	s.Equal(uint64(1), entries[0].Index)
	s.Equal(entries[0].Hash, entries[1].PrevHash)
	s.True(entries[1].Valid())

	result, err := s.ledger.VerifyIntegrity(s.ctx, audit.Range{})
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Equal(2, result.Checked)
}

func (s *LedgerSuite) TestCriticalEventsPersistBeforeReturn() {
	s.Run("non critical entries wait for a flush", func() {
		_, err := s.ledger.LogEvent(s.ctx, audit.VoteCast{VoteID: "v1"})
		s.Require().NoError(err)
		s.Empty(s.stored())

		s.Require().NoError(s.ledger.Flush(s.ctx))
		s.Len(s.stored(), 1)
	})

	s.Run("critical entry flushes earlier buffered entries in order", func() {
		_, err := s.ledger.LogEvent(s.ctx, audit.VoteCast{VoteID: "v2"})
		s.Require().NoError(err)
		_, err = s.ledger.LogEvent(s.ctx, audit.NullifierRejected{ElectionID: "e1", Nullifier: "ab", Reason: "already_used"})
		s.Require().NoError(err)

		stored := s.stored()
		s.Require().Len(stored, 3)
		s.Equal(audit.TypeVoteCast, stored[1].Type)
		s.Equal(audit.TypeNullifierRejected, stored[2].Type)
	})
}

func (s *LedgerSuite) TestCriticalWriteFailureIsFailClosed() {
	_, err := s.ledger.LogEvent(s.ctx, audit.VoteCast{VoteID: "v1"})
	s.Require().NoError(err)

	s.store.setFail(true)
	id, err := s.ledger.LogEvent(s.ctx, audit.VoterAuthentication{VoterID: "voter-1", Outcome: "success"})
	s.Require().Error(err)
	s.Equal("00000000-0000-0000-0000-000000000000", id.String())

	s.store.setFail(false)
	_, err = s.ledger.LogEvent(s.ctx, audit.VoterAuthentication{VoterID: "voter-1", Outcome: "success"})
	s.Require().NoError(err)

	entries := s.stored()
	s.Require().Len(entries, 2)
	s.Equal(uint64(2), entries[1].Index)

	result, err := s.ledger.VerifyIntegrity(s.ctx, audit.Range{})
	s.Require().NoError(err)
	s.True(result.Valid)
}

func (s *LedgerSuite) TestTamperingBreaksChainAndHalts() {
	for i := 0; i < 5; i++ {
		_, err := s.ledger.LogEvent(s.ctx, audit.SyncJobStarted{SyncID: "s", MachineID: "m1"})
		s.Require().NoError(err)
	}
	s.Require().NoError(s.ledger.Flush(s.ctx))

	s.True(s.store.Tamper(3, func(e *audit.Entry) {
		e.Payload = []byte(`{"sync_id":"forged","machine_id":"m1","sync_type":"","force_full":false}`)
	}))

	result, err := s.ledger.VerifyIntegrity(s.ctx, audit.Range{})
	s.Require().Error(err)
	s.True(audit.IsIntegrityViolation(err))
	s.False(result.Valid)
	s.Equal(uint64(3), result.BrokenAt)
	s.True(s.ledger.Halted())

	s.Run("entries before the tampered one still verify", func() {
		result, err := s.ledger.VerifyIntegrity(s.ctx, audit.Range{To: 2})
		s.Require().NoError(err)
		s.True(result.Valid)
	})

	s.Run("report counts the tampered entry as failed", func() {
		report, err := s.ledger.IntegrityReport(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, report.Failed)
		s.Less(report.Percentage, 100.0)
	})
}

func (s *LedgerSuite) TestCleanupKeepsRemainingChainValid() {
	old := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	oldCtx := requestcontext.WithTime(s.ctx, old)
	for i := 0; i < 3; i++ {
		_, err := s.ledger.LogEvent(oldCtx, audit.VoteCast{VoteID: "old"})
		s.Require().NoError(err)
	}
	recentCtx := requestcontext.WithTime(s.ctx, old.Add(60*24*time.Hour))
	for i := 0; i < 2; i++ {
		_, err := s.ledger.LogEvent(recentCtx, audit.VoteCast{VoteID: "recent"})
		s.Require().NoError(err)
	}

	removed, err := s.ledger.CleanupOldLogs(recentCtx, 30)
	s.Require().NoError(err)
	s.Equal(3, removed)

	entries, err := s.ledger.Logs(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(uint64(4), entries[0].Index)
	s.Equal(audit.TypeLedgerPruned, entries[2].Type)

	cp, ok, err := s.store.Checkpoint(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(entries[0].PrevHash, cp.Anchor)

	result, err := s.ledger.VerifyIntegrity(s.ctx, audit.Range{})
	s.Require().NoError(err)
	s.True(result.Valid)

	s.Run("a restarted ledger resumes from the checkpoint", func() {
		reopened, err := audit.New(s.ctx, s.store, audit.WithGenesis("test-genesis"))
		s.Require().NoError(err)
		result, err := reopened.VerifyIntegrity(s.ctx, audit.Range{})
		s.Require().NoError(err)
		s.True(result.Valid)
	})
}

func (s *LedgerSuite) TestConcurrentAppendsFormOneChain() {
	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.LogEvent(s.ctx, audit.VoteCast{VoteID: "v"})
			s.NoError(err)
		}()
	}
	wg.Wait()

	entries, err := s.ledger.Logs(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Require().Len(entries, writers)
	for i, e := range entries {
		s.Equal(uint64(i+1), e.Index)
	}
	result, err := s.ledger.VerifyIntegrity(s.ctx, audit.Range{})
	s.Require().NoError(err)
	s.True(result.Valid)
}

func (s *LedgerSuite) TestLogsFilterAndTimeRange() {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		ctx := requestcontext.WithTime(s.ctx, base.Add(time.Duration(i)*time.Hour))
		_, err := s.ledger.LogEvent(ctx, audit.VoteCast{VoteID: "v"})
		s.Require().NoError(err)
	}
	_, err := s.ledger.LogEvent(requestcontext.WithTime(s.ctx, base), audit.NullifierRegistered{ElectionID: "e", Nullifier: "aa"})
	s.Require().NoError(err)

	inRange, err := s.ledger.LogsByTimeRange(s.ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Len(inRange, 2)

	byType, err := s.ledger.Logs(s.ctx, audit.Filter{Types: []audit.EventType{audit.TypeNullifierRegistered}})
	s.Require().NoError(err)
	s.Require().Len(byType, 1)

	event, err := byType[0].Event()
	s.Require().NoError(err)
	s.Equal(&audit.NullifierRegistered{ElectionID: "e", Nullifier: "aa"}, event)
}

func TestLedgerRaisesAlertsAsEntriesArrive(t *testing.T) {
	ctx := context.Background()
	collector := analyzer.NewCollector()
	ledger, err := audit.New(ctx, memory.New(), audit.WithAnalyzer(analyzer.New(analyzer.WithSinks(collector))))
	require.NoError(t, err)

	failed := audit.VoterAuthentication{MachineID: "m1", VoterID: "v1", Method: "biometric_only", Outcome: "biometric_failure", Confidence: 0.2}
	for i := 0; i < 2; i++ {
		_, err := ledger.LogEvent(ctx, failed)
		require.NoError(t, err)
	}
	assert.NotContains(t, patterns(collector.Alerts()), "Multiple Failed Auth")

	_, err = ledger.LogEvent(ctx, failed)
	require.NoError(t, err)
	assert.Contains(t, patterns(collector.Alerts()), "Multiple Failed Auth")

	_, err = ledger.LogEvent(ctx, audit.SecurityAlert{Source: "votesync", Subject: "vote-1", Message: "retries exhausted"})
	require.NoError(t, err)
	alerts := collector.Alerts()
	last := alerts[len(alerts)-1]
	assert.Equal(t, "Security Event", last.Pattern)
	assert.Equal(t, analyzer.SeverityCritical, last.Severity)
}

func patterns(alerts []analyzer.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Pattern
	}
	return out
}
