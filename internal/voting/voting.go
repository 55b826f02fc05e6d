// Package voting runs the cast flow of a voting machine: authenticate the
// voter, verify the voting proof, spend the nullifier and queue the encrypted
// ballot for synchronization.
package voting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"fortis/internal/auth"
	"fortis/internal/auth/biometric"
	"fortis/internal/auth/certificate"
	"fortis/internal/nullifier"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/validation"
)

// Ballot is the encrypted vote as produced by the machine. Every field is
// mandatory.
type Ballot struct {
	EncryptedContent []byte `json:"encrypted_content"`
	EncryptionKeyID  string `json:"encryption_key_id"`
	Signature        []byte `json:"signature"`
}

type CastVoteRequest struct {
	MachineID   string
	VoterID     string
	ElectionID  string
	CandidateID string
	Biometric   biometric.Sample
	Certificate *certificate.Record
	Ballot      Ballot

	// Proof, Nullifier and VoteCommitment come from GenerateVotingProof on
	// the machine; the commitment is the proof's public input that hides the
	// candidate.
	Proof          nullifier.Proof
	Nullifier      nullifier.Nullifier
	VoteCommitment []byte
}

// Receipt is what the voter takes away. It never names the candidate.
type Receipt struct {
	VoteID     uuid.UUID `json:"vote_id"`
	ElectionID string    `json:"election_id"`
	MachineID  string    `json:"machine_id"`
	CastAt     time.Time `json:"cast_at"`
	Digest     string    `json:"digest"`
}

type CastVoteResult struct {
	VoteID  uuid.UUID                 `json:"vote_id"`
	Receipt Receipt                   `json:"receipt"`
	Auth    auth.AuthenticationResult `json:"-"`
}

type EligibilityKind string

const (
	KindNotEligible     EligibilityKind = "not_eligible"
	KindAlreadyVoted    EligibilityKind = "already_voted"
	KindNullifierReplay EligibilityKind = "nullifier_replay"
)

// EligibilityError aborts a cast after the voter authenticated. Replays map
// to a conflict, the roll outcomes to forbidden.
type EligibilityError struct {
	Kind EligibilityKind
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("vote rejected: %s", e.Kind)
}

func (e *EligibilityError) Unwrap() error {
	if e.Kind == KindNullifierReplay {
		return dErrors.New(dErrors.CodeConflict, string(e.Kind))
	}
	return dErrors.New(dErrors.CodeForbidden, string(e.Kind))
}

func (r CastVoteRequest) validate() error {
	switch {
	case r.MachineID == "" || r.VoterID == "" || r.ElectionID == "" || r.CandidateID == "":
		return dErrors.New(dErrors.CodeInvalidInput, "machine, voter, election and candidate ids are required")
	case !validation.ValidCPF(r.VoterID):
		return dErrors.New(dErrors.CodeInvalidInput, "voter_id must be a valid CPF")
	case len(r.Ballot.EncryptedContent) == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "encrypted_content is required")
	case r.Ballot.EncryptionKeyID == "":
		return dErrors.New(dErrors.CodeInvalidInput, "encryption_key_id is required")
	case len(r.Ballot.Signature) == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "signature is required")
	case len(r.Proof) == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "zk_proof is required")
	case r.Nullifier.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "nullifier is required")
	}
	return nil
}
