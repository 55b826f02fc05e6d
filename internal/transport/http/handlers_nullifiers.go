package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fortis/internal/nullifier"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/platform/httputil"
)

type registerNullifierRequest struct {
	ElectionID string `json:"election_id"`
	Nullifier  string `json:"nullifier"`
}

type nullifierResponse struct {
	ElectionID string `json:"election_id"`
	Nullifier  string `json:"nullifier"`
	Registered bool   `json:"registered"`
	Decision   string `json:"decision,omitempty"`
}

func (h *Handler) handleCheckNullifier(w http.ResponseWriter, r *http.Request) {
	electionID := chi.URLParam(r, "election")
	n, err := nullifier.Parse(chi.URLParam(r, "nullifier"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "nullifier must be 32 hex-encoded bytes"))
		return
	}
	ok, err := h.nullifiers.IsRegistered(r.Context(), n, electionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nullifierResponse{ElectionID: electionID, Nullifier: n.String(), Registered: ok})
}

// handleRegisterNullifier answers 201 for a fresh nullifier and 409 for a
// replay.
func (h *Handler) handleRegisterNullifier(w http.ResponseWriter, r *http.Request) {
	var body registerNullifierRequest
	if err := decodeJSON(w, r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := nullifier.Parse(body.Nullifier)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "nullifier must be 32 hex-encoded bytes"))
		return
	}
	decision, err := h.nullifiers.CheckAndRegister(r.Context(), n, body.ElectionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := nullifierResponse{
		ElectionID: body.ElectionID,
		Nullifier:  n.String(),
		Registered: true,
		Decision:   decision.String(),
	}
	if decision != nullifier.Accepted {
		httputil.WriteJSON(w, http.StatusConflict, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}
