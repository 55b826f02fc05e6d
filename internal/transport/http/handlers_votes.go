package httptransport

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fortis/internal/auth"
	"fortis/internal/auth/biometric"
	"fortis/internal/auth/certificate"
	"fortis/internal/nullifier"
	"fortis/internal/voting"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/platform/httputil"
	"fortis/pkg/requestcontext"
	"fortis/pkg/validation"
)

type biometricPayload struct {
	Fingerprint     []byte    `json:"fingerprint"`
	FingerprintHash string    `json:"fingerprint_hash,omitempty"`
	Facial          []byte    `json:"facial"`
	FacialHash      string    `json:"facial_hash,omitempty"`
	CapturedAt      time.Time `json:"captured_at"`
}

// votePayload is the encrypted vote as it travels; every field is required.
type votePayload struct {
	EncryptedContent []byte `json:"encrypted_content"`
	EncryptionKeyID  string `json:"encryption_key_id"`
	Signature        []byte `json:"signature"`
	ZKProof          []byte `json:"zk_proof"`
}

type castVoteRequest struct {
	VoterID        string              `json:"voter_id"`
	ElectionID     string              `json:"election_id"`
	CandidateID    string              `json:"candidate_id"`
	Biometric      biometricPayload    `json:"biometric"`
	Certificate    *certificate.Record `json:"certificate,omitempty"`
	Vote           votePayload         `json:"vote"`
	Nullifier      string              `json:"nullifier"`
	VoteCommitment []byte              `json:"vote_commitment"`
}

type castVoteResponse struct {
	VoteID  uuid.UUID      `json:"vote_id"`
	Receipt voting.Receipt `json:"receipt"`
}

// handleCastVote casts for the machine named in the session, never for one
// named in the body.
func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body castVoteRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeCastError(w, err)
		return
	}
	n, err := nullifier.Parse(body.Nullifier)
	if err != nil {
		h.writeCastError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "nullifier must be 32 hex-encoded bytes"))
		return
	}

	result, err := h.votes.CastVote(ctx, voting.CastVoteRequest{
		MachineID:   requestcontext.MachineID(ctx),
		VoterID:     validation.NormalizeCPF(body.VoterID),
		ElectionID:  body.ElectionID,
		CandidateID: body.CandidateID,
		Biometric: biometric.Sample{
			Fingerprint:     body.Biometric.Fingerprint,
			FingerprintHash: body.Biometric.FingerprintHash,
			Facial:          body.Biometric.Facial,
			FacialHash:      body.Biometric.FacialHash,
			CapturedAt:      body.Biometric.CapturedAt,
		},
		Certificate: body.Certificate,
		Ballot: voting.Ballot{
			EncryptedContent: body.Vote.EncryptedContent,
			EncryptionKeyID:  body.Vote.EncryptionKeyID,
			Signature:        body.Vote.Signature,
		},
		Proof:          body.Vote.ZKProof,
		Nullifier:      n,
		VoteCommitment: body.VoteCommitment,
	})
	if err != nil {
		h.writeCastError(w, err)
		return
	}
	h.metrics.IncVoteCast("accepted")
	httputil.WriteJSON(w, http.StatusCreated, castVoteResponse{VoteID: result.VoteID, Receipt: result.Receipt})
}

func (h *Handler) writeCastError(w http.ResponseWriter, err error) {
	h.metrics.IncVoteCast(string(dErrors.CodeOf(err)))
	var ae *auth.Error
	if errors.As(err, &ae) && ae.Kind == auth.KindLockedOut && ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ae.RetryAfter.Seconds()))))
	}
	httputil.WriteError(w, err)
}
