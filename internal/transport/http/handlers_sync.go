package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fortis/internal/votesync"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/platform/httputil"
	"fortis/pkg/requestcontext"
)

type startSyncRequest struct {
	SyncType  string `json:"sync_type"`
	ForceFull bool   `json:"force_full"`
}

func (h *Handler) handleStartSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body startSyncRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	syncType, ok := votesync.ParseSyncType(body.SyncType)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "sync_type must be full, incremental, emergency or offline"))
		return
	}

	res, err := h.sync.StartSync(ctx, requestcontext.MachineID(ctx), syncType, body.ForceFull)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, res)
}

// handleSyncStatus only shows a machine its own jobs; other machines' jobs
// are reported as missing.
func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "sync id must be a uuid"))
		return
	}
	job, err := h.sync.Status(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if job.MachineID != requestcontext.MachineID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "sync job not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (h *Handler) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	machineID := requestcontext.MachineID(ctx)
	n, err := h.sync.PendingCount(ctx, machineID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"machine_id": machineID, "pending": n})
}

func (h *Handler) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	report, err := h.sync.RetryFailedSyncs(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// handleCleanup accepts an optional ?retention= duration overriding the
// configured one.
func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	retention := h.cleanupRetention
	if v := r.URL.Query().Get("retention"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "retention must be a non-negative duration"))
			return
		}
		retention = d
	}
	removed, err := h.sync.CleanupCompletedSyncs(r.Context(), retention)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
