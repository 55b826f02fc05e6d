package audit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortis/internal/audit"
	"fortis/internal/audit/store/memory"
	"fortis/pkg/requestcontext"
)

func seededLedger(t *testing.T) *audit.Ledger {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 10, 4, 9, 30, 0, 123456000, time.UTC))
	ledger, err := audit.New(ctx, memory.New())
	require.NoError(t, err)

	events := []audit.Event{
		audit.VoterAuthentication{MachineID: "m1", VoterID: "v1", Method: "biometric_only", Outcome: "success", Confidence: 0.935},
		audit.NullifierRegistered{ElectionID: "2026-1", Nullifier: "ab12"},
		audit.VoteSyncFailed{VoteID: "vote-1", MachineID: "m1", SyncID: "s1", Kind: "network_timeout", Reason: `node "a" <timeout>, retry`, Retryable: true},
	}
	for _, e := range events {
		_, err := ledger.LogEvent(ctx, e)
		require.NoError(t, err)
	}
	return ledger
}

func TestExportRoundTrip(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()
	want, err := ledger.Logs(ctx, audit.Filter{})
	require.NoError(t, err)

	for _, format := range []audit.Format{audit.FormatJSON, audit.FormatCSV, audit.FormatXML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := ledger.Export(ctx, format, audit.Filter{})
			require.NoError(t, err)

			got, err := audit.Parse(format, data)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			for _, e := range got {
				assert.True(t, e.Valid(), "entry %d should verify after round trip", e.Index)
			}

			again, err := audit.Encode(format, got)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again), "export must be deterministic")
		})
	}
}

func TestExportFieldOrder(t *testing.T) {
	ledger := seededLedger(t)

	csvData, err := ledger.Export(context.Background(), audit.FormatCSV, audit.Filter{})
	require.NoError(t, err)
	header := strings.SplitN(string(csvData), "\n", 2)[0]
	assert.Equal(t, "id,index,event_type,timestamp,prev_hash,integrity_hash,payload", header)

	jsonData, err := ledger.Export(context.Background(), audit.FormatJSON, audit.Filter{Limit: 1})
	require.NoError(t, err)
	body := string(jsonData)
	order := []string{`"id"`, `"index"`, `"event_type"`, `"timestamp"`, `"prev_hash"`, `"integrity_hash"`, `"payload"`}
	last := -1
	for _, key := range order {
		pos := strings.Index(body, key)
		require.Greater(t, pos, last, "field %s out of order", key)
		last = pos
	}
}

func TestParseFormat(t *testing.T) {
	f, err := audit.ParseFormat("XML")
	require.NoError(t, err)
	assert.Equal(t, audit.FormatXML, f)

	_, err = audit.ParseFormat("yaml")
	require.Error(t, err)
	var ae *audit.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, audit.KindExportFailure, ae.Kind)
}
