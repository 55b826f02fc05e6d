// Package requesttime pins one "now" per request so audit entries, lockout
// windows and vote timestamps written while serving it agree.
package requesttime

import (
	"net/http"
	"time"

	"fortis/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
