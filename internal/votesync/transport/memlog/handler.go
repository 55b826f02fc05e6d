package memlog

import (
	"encoding/json"
	"errors"
	"net/http"

	"fortis/internal/votesync"
)

// Handler serves POST /v1/entries so a standalone log speaks the same
// protocol as the remote one.
func (l *Log) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/entries", func(w http.ResponseWriter, r *http.Request) {
		var sub votesync.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			http.Error(w, "invalid submission", http.StatusBadRequest)
			return
		}
		hash, err := l.Submit(r.Context(), sub)
		if errors.Is(err, ErrLogFull) {
			http.Error(w, err.Error(), http.StatusInsufficientStorage)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"log_hash": hash})
	})
	return mux
}
