package votesync

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"fortis/internal/audit"
)

// Store persists votes and job records. Votes are listed in the order they
// were enqueued.
type Store interface {
	SaveVote(ctx context.Context, vote EncryptedVote) error
	UpdateVote(ctx context.Context, vote EncryptedVote) error
	GetVote(ctx context.Context, id uuid.UUID) (EncryptedVote, error)
	// ListVotes returns votes in any of statuses; an empty machineID lists all machines.
	ListVotes(ctx context.Context, machineID string, statuses ...VoteStatus) ([]EncryptedVote, error)
	CountVotes(ctx context.Context, machineID string, statuses ...VoteStatus) (int, error)
	DeleteConfirmedVotes(ctx context.Context, before time.Time) (int, error)

	SaveJob(ctx context.Context, job SyncJob) error
	GetJob(ctx context.Context, id uuid.UUID) (SyncJob, error)
	ListJobs(ctx context.Context, statuses ...JobStatus) ([]SyncJob, error)
	DeleteTerminalJobs(ctx context.Context, before time.Time) (int, error)
}

// Submission is the wire payload sent to the transparency log and the
// verification nodes.
type Submission struct {
	VoteID           uuid.UUID `json:"vote_id"`
	MachineID        string    `json:"machine_id"`
	ElectionID       string    `json:"election_id"`
	EncryptedContent []byte    `json:"encrypted_content"`
	EncryptionKeyID  string    `json:"encryption_key_id"`
	Signature        []byte    `json:"signature"`
	ZKProof          []byte    `json:"zk_proof"`
	CastAt           time.Time `json:"cast_at"`
}

func NewSubmission(v EncryptedVote) Submission {
	return Submission{
		VoteID:           v.ID,
		MachineID:        v.MachineID,
		ElectionID:       v.ElectionID,
		EncryptedContent: v.EncryptedContent,
		EncryptionKeyID:  v.EncryptionKeyID,
		Signature:        v.Signature,
		ZKProof:          v.ZKProof,
		CastAt:           v.CastAt,
	}
}

// TransparencyLog appends a submission and returns its log hash.
type TransparencyLog interface {
	Submit(ctx context.Context, sub Submission) (string, error)
}

// AckRequest asks a node to confirm a submission already in the log.
type AckRequest struct {
	Submission Submission `json:"submission"`
	LogHash    string     `json:"log_hash"`
}

// VerificationNode returns a secp256k1 signature over AckDigest.
type VerificationNode interface {
	Address() common.Address
	Acknowledge(ctx context.Context, req AckRequest) ([]byte, error)
}

// AckDigest is keccak256(vote id ∥ log hash), the message nodes sign.
func AckDigest(voteID uuid.UUID, logHash string) []byte {
	return crypto.Keccak256(voteID[:], []byte(logHash))
}

// RecoverSigner returns the address that produced sig over AckDigest.
func RecoverSigner(voteID uuid.UUID, logHash string, sig []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(AckDigest(voteID, logHash), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// AuditLogger is the slice of the audit ledger the engine writes to.
type AuditLogger interface {
	LogEvent(ctx context.Context, event audit.Event) (uuid.UUID, error)
}

// LedgerState lets reconciliation refuse to run while the audit chain is
// under manual review.
type LedgerState interface {
	Halted() bool
}
