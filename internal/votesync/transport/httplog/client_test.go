package httplog

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortis/internal/votesync"
	"fortis/internal/votesync/transport/memlog"
)

func TestSubmitAgainstMemlog(t *testing.T) {
	log, err := memlog.New(8)
	require.NoError(t, err)
	srv := httptest.NewServer(log.Handler())
	defer srv.Close()

	client := New(srv.URL)
	hash, err := client.Submit(context.Background(), votesync.Submission{
		VoteID:           uuid.New(),
		EncryptedContent: []byte("c"),
	})
	require.NoError(t, err)
	assert.Len(t, hash, 64)
	assert.Equal(t, 1, log.Size())

	proof, err := log.InclusionProof(hash)
	require.NoError(t, err)
	assert.True(t, memlog.VerifyInclusion(hash, proof))
}

func TestSubmitFullLogIsUnavailable(t *testing.T) {
	log, err := memlog.New(1)
	require.NoError(t, err)
	srv := httptest.NewServer(log.Handler())
	defer srv.Close()

	client := New(srv.URL)
	for i := 0; i < 2; i++ {
		_, err := client.Submit(context.Background(), votesync.Submission{VoteID: uuid.New()})
		require.NoError(t, err)
	}
	_, err = client.Submit(context.Background(), votesync.Submission{VoteID: uuid.New()})
	assert.Error(t, err)
}
