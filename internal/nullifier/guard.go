package nullifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"fortis/internal/audit"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/requestcontext"
)

// Store records registered nullifiers per election. Register must be an
// atomic test-and-set: for any (election, nullifier) exactly one caller ever
// sees true.
type Store interface {
	Register(ctx context.Context, electionID string, n Nullifier) (bool, error)
	Exists(ctx context.Context, electionID string, n Nullifier) (bool, error)
}

// AuditLogger is the slice of the audit ledger the guard writes to.
type AuditLogger interface {
	LogEvent(ctx context.Context, event audit.Event) (uuid.UUID, error)
}

// Guard generates and verifies proofs and owns the registration decision.
type Guard struct {
	store   Store
	circuit Circuit
	audit   AuditLogger
	logger  *slog.Logger
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func WithAuditLogger(a AuditLogger) Option {
	return func(g *Guard) { g.audit = a }
}

func NewGuard(store Store, circuit Circuit, opts ...Option) *Guard {
	g := &Guard{store: store, circuit: circuit, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateEligibilityProof proves knowledge of the secret behind the
// election's nullifier.
func (g *Guard) GenerateEligibilityProof(secret []byte, electionID string) (Proof, Nullifier, error) {
	if err := validateWitness(secret, electionID); err != nil {
		return nil, Nullifier{}, err
	}
	n := Derive(secret, electionID)
	proof, err := g.circuit.Prove(secret, PublicInputs{ElectionID: electionID, Nullifier: n})
	if err != nil {
		return nil, Nullifier{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate eligibility proof")
	}
	return proof, n, nil
}

// GenerateVotingProof additionally binds a commitment to the candidate. The
// nullifier is the same one the eligibility proof yields for the election.
func (g *Guard) GenerateVotingProof(secret []byte, candidateID, electionID string) (Proof, Nullifier, []byte, error) {
	if err := validateWitness(secret, electionID); err != nil {
		return nil, Nullifier{}, nil, err
	}
	if candidateID == "" {
		return nil, Nullifier{}, nil, dErrors.New(dErrors.CodeInvalidInput, "candidate id is required")
	}
	n := Derive(secret, electionID)
	commitment := VoteCommitment(secret, candidateID, electionID)
	proof, err := g.circuit.Prove(secret, PublicInputs{ElectionID: electionID, Nullifier: n, VoteCommitment: commitment})
	if err != nil {
		return nil, Nullifier{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate voting proof")
	}
	return proof, n, commitment, nil
}

// Verify reports whether proof is valid for the public inputs.
func (g *Guard) Verify(proof Proof, public PublicInputs) bool {
	return g.circuit.Verify(proof, public)
}

// CheckAndRegister is the double-vote decision. A rejection is written to the
// audit ledger before returning; if that write fails the error is returned
// with the rejection.
func (g *Guard) CheckAndRegister(ctx context.Context, n Nullifier, electionID string) (Decision, error) {
	if electionID == "" || n.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "election id and nullifier are required")
	}
	fresh, err := g.store.Register(ctx, electionID, n)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "register nullifier")
	}

	if !fresh {
		g.logger.WarnContext(ctx, "nullifier replay rejected",
			"log_type", "audit",
			"event", string(audit.TypeNullifierRejected),
			"election_id", electionID,
			"machine_id", requestcontext.MachineID(ctx),
		)
		if g.audit != nil {
			_, err := g.audit.LogEvent(ctx, audit.NullifierRejected{
				ElectionID: electionID,
				Nullifier:  n.String(),
				MachineID:  requestcontext.MachineID(ctx),
				Reason:     RejectedAlreadyUsed.String(),
			})
			if err != nil {
				return RejectedAlreadyUsed, fmt.Errorf("audit nullifier rejection: %w", err)
			}
		}
		return RejectedAlreadyUsed, nil
	}

	if g.audit != nil {
		if _, err := g.audit.LogEvent(ctx, audit.NullifierRegistered{ElectionID: electionID, Nullifier: n.String()}); err != nil {
			g.logger.ErrorContext(ctx, "failed to audit nullifier registration", "error", err)
		}
	}
	return Accepted, nil
}

// IsRegistered is a read-only lookup.
func (g *Guard) IsRegistered(ctx context.Context, n Nullifier, electionID string) (bool, error) {
	ok, err := g.store.Exists(ctx, electionID, n)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "lookup nullifier")
	}
	return ok, nil
}

func validateWitness(secret []byte, electionID string) error {
	if len(secret) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "voter secret is required")
	}
	if electionID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "election id is required")
	}
	return nil
}
