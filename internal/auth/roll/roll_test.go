package roll

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortis/pkg/platform/circuit"
	"fortis/pkg/platform/sentinel"
)

func TestMemoryRoll(t *testing.T) {
	ctx := context.Background()
	r := NewMemory()
	r.Enroll("e-2026", "v1")

	eligible, err := r.IsEligible(ctx, "v1", "e-2026")
	require.NoError(t, err)
	assert.True(t, eligible)

	eligible, err = r.IsEligible(ctx, "v1", "e-2030")
	require.NoError(t, err)
	assert.False(t, eligible, "eligibility is per election")

	voted, err := r.HasVoted(ctx, "v1", "e-2026")
	require.NoError(t, err)
	assert.False(t, voted)

	require.NoError(t, r.MarkVoted(ctx, "v1", "e-2026"))
	voted, err = r.HasVoted(ctx, "v1", "e-2026")
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/elections/e-2026/voters/v1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"eligible":true,"has_voted":true}`))
		case "/v1/elections/e-2026/voters/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	t.Run("known voter", func(t *testing.T) {
		c := NewHTTPClient(srv.URL)
		eligible, err := c.IsEligible(ctx, "v1", "e-2026")
		require.NoError(t, err)
		assert.True(t, eligible)
		voted, err := c.HasVoted(ctx, "v1", "e-2026")
		require.NoError(t, err)
		assert.True(t, voted)
	})

	t.Run("unknown voter is not eligible", func(t *testing.T) {
		c := NewHTTPClient(srv.URL)
		eligible, err := c.IsEligible(ctx, "nobody", "e-2026")
		require.NoError(t, err)
		assert.False(t, eligible)
	})

	t.Run("server errors open the breaker", func(t *testing.T) {
		c := NewHTTPClient(srv.URL, WithBreaker(circuit.New("roll-test", circuit.WithFailureThreshold(2))))
		for i := 0; i < 2; i++ {
			_, err := c.IsEligible(ctx, "broken", "e-2026")
			require.ErrorIs(t, err, sentinel.ErrUnavailable)
		}
		_, err := c.IsEligible(ctx, "v1", "e-2026")
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Contains(t, err.Error(), "circuit open")
	})
}
