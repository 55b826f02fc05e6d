package admin

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"fortis/pkg/testutil"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{"matching token", "ops", "ops", http.StatusOK},
		{"wrong token", "ops", "nope", http.StatusUnauthorized},
		{"missing token", "ops", "", http.StatusUnauthorized},
		{"routes disabled", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/admin/sync/retry")
			if tt.sent != "" {
				req.Header.Set("X-Admin-Token", tt.sent)
			}
			rr := testutil.DoRequest(RequireAdminToken(tt.expected, logger)(ok), req)
			testutil.AssertStatus(t, rr, tt.status)
			if tt.status == http.StatusUnauthorized {
				testutil.AssertErrorCode(t, rr, "unauthorized")
			}
		})
	}
}
