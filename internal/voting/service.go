package voting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"fortis/internal/audit"
	"fortis/internal/auth"
	"fortis/internal/nullifier"
	"fortis/internal/votesync"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/requestcontext"
)

type Authenticator interface {
	Authenticate(ctx context.Context, req auth.AuthenticateRequest) (*auth.AuthenticationResult, error)
}

type Guard interface {
	Verify(proof nullifier.Proof, public nullifier.PublicInputs) bool
	CheckAndRegister(ctx context.Context, n nullifier.Nullifier, electionID string) (nullifier.Decision, error)
}

type VoteQueue interface {
	Enqueue(ctx context.Context, vote votesync.EncryptedVote) error
}

type AuditLogger interface {
	LogEvent(ctx context.Context, event audit.Event) (uuid.UUID, error)
}

// VoteRecorder marks a voter as having voted on the roll.
type VoteRecorder interface {
	MarkVoted(ctx context.Context, voterID, electionID string) error
}

type Service struct {
	auth     Authenticator
	guard    Guard
	queue    VoteQueue
	audit    AuditLogger
	recorder VoteRecorder
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditLogger(a AuditLogger) Option {
	return func(s *Service) { s.audit = a }
}

func WithVoteRecorder(r VoteRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func New(authenticator Authenticator, guard Guard, queue VoteQueue, opts ...Option) (*Service, error) {
	if authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	if guard == nil {
		return nil, errors.New("nullifier guard is required")
	}
	if queue == nil {
		return nil, errors.New("vote queue is required")
	}
	s := &Service{auth: authenticator, guard: guard, queue: queue, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CastVote authenticates the voter and, only if every check passes, spends
// the nullifier and queues the ballot. Authentication and eligibility
// failures leave no trace in the nullifier set or the sync queue.
func (s *Service) CastVote(ctx context.Context, req CastVoteRequest) (*CastVoteResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ctx = requestcontext.WithMachineID(ctx, req.MachineID)

	result, err := s.auth.Authenticate(ctx, auth.AuthenticateRequest{
		MachineID:   req.MachineID,
		VoterID:     req.VoterID,
		ElectionID:  req.ElectionID,
		Biometric:   req.Biometric,
		Certificate: req.Certificate,
	})
	if err != nil {
		return nil, err
	}
	switch result.Outcome {
	case auth.OutcomeSuccess:
	case auth.OutcomeNotEligible:
		return nil, &EligibilityError{Kind: KindNotEligible}
	case auth.OutcomeAlreadyVoted:
		return nil, &EligibilityError{Kind: KindAlreadyVoted}
	default:
		return nil, dErrors.New(dErrors.CodeUnauthorized, string(result.Outcome))
	}

	public := nullifier.PublicInputs{
		ElectionID:     req.ElectionID,
		Nullifier:      req.Nullifier,
		VoteCommitment: req.VoteCommitment,
	}
	if !s.guard.Verify(req.Proof, public) {
		s.alertInvalidProof(ctx, req)
		return nil, dErrors.New(dErrors.CodeValidation, "voting proof does not verify")
	}

	decision, err := s.guard.CheckAndRegister(ctx, req.Nullifier, req.ElectionID)
	if err != nil {
		return nil, err
	}
	if decision != nullifier.Accepted {
		return nil, &EligibilityError{Kind: KindNullifierReplay}
	}

	now := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	vote := votesync.EncryptedVote{
		ID:               uuid.New(),
		MachineID:        req.MachineID,
		ElectionID:       req.ElectionID,
		CandidateID:      req.CandidateID,
		EncryptedContent: req.Ballot.EncryptedContent,
		EncryptionKeyID:  req.Ballot.EncryptionKeyID,
		Signature:        req.Ballot.Signature,
		ZKProof:          req.Proof,
		CastAt:           now,
	}
	if err := s.queue.Enqueue(ctx, vote); err != nil {
		s.alertOrphanedNullifier(ctx, req, err)
		return nil, err
	}

	if s.audit != nil {
		_, err := s.audit.LogEvent(ctx, audit.VoteCast{
			VoteID:     vote.ID.String(),
			MachineID:  vote.MachineID,
			ElectionID: vote.ElectionID,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to audit cast vote", "vote_id", vote.ID, "error", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.MarkVoted(ctx, req.VoterID, req.ElectionID); err != nil {
			s.logger.WarnContext(ctx, "failed to mark voter on roll", "election_id", req.ElectionID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "vote cast",
		"log_type", "audit",
		"event", string(audit.TypeVoteCast),
		"vote_id", vote.ID,
		"machine_id", vote.MachineID,
		"election_id", vote.ElectionID,
	)
	return &CastVoteResult{
		VoteID:  vote.ID,
		Receipt: receiptFor(vote, req.Nullifier),
		Auth:    *result,
	}, nil
}

// alertInvalidProof records a proof that failed verification after the voter
// authenticated. The nullifier is not spent.
func (s *Service) alertInvalidProof(ctx context.Context, req CastVoteRequest) {
	s.logger.WarnContext(ctx, "voting proof rejected",
		"log_type", "audit",
		"event", string(audit.TypeSecurityAlert),
		"machine_id", req.MachineID,
		"election_id", req.ElectionID,
	)
	if s.audit == nil {
		return
	}
	_, err := s.audit.LogEvent(ctx, audit.SecurityAlert{
		Source:  "voting",
		Subject: req.Nullifier.String(),
		Message: "voting proof failed verification for election " + req.ElectionID + " on machine " + req.MachineID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to audit rejected proof", "error", err)
	}
}

// alertOrphanedNullifier reports a spent nullifier with no queued ballot.
// The registration cannot be undone, so an operator has to reconcile it.
func (s *Service) alertOrphanedNullifier(ctx context.Context, req CastVoteRequest, cause error) {
	s.logger.ErrorContext(ctx, "nullifier spent but ballot not queued",
		"machine_id", req.MachineID,
		"election_id", req.ElectionID,
		"error", cause,
	)
	if s.audit == nil {
		return
	}
	_, err := s.audit.LogEvent(ctx, audit.SecurityAlert{
		Source:  "voting",
		Subject: req.Nullifier.String(),
		Message: "nullifier registered for election " + req.ElectionID + " but ballot was not queued: " + cause.Error(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to audit orphaned nullifier", "error", err)
	}
}

// receiptFor binds the vote id, nullifier and ciphertext so the voter can
// later check the ballot in the transparency log without revealing it.
func receiptFor(vote votesync.EncryptedVote, n nullifier.Nullifier) Receipt {
	digest := crypto.Keccak256(vote.ID[:], n[:], vote.EncryptedContent)
	return Receipt{
		VoteID:     vote.ID,
		ElectionID: vote.ElectionID,
		MachineID:  vote.MachineID,
		CastAt:     vote.CastAt,
		Digest:     hexutil.Encode(digest),
	}
}
