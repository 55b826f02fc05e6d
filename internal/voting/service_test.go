package voting_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Authenticator,VoteQueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"fortis/internal/audit"
	auditmemory "fortis/internal/audit/store/memory"
	"fortis/internal/auth"
	"fortis/internal/auth/biometric"
	"fortis/internal/auth/certificate"
	"fortis/internal/auth/lockout"
	"fortis/internal/auth/roll"
	"fortis/internal/nullifier"
	nullifiermemory "fortis/internal/nullifier/store/memory"
	"fortis/internal/votesync"
	votememory "fortis/internal/votesync/store/memory"
	"fortis/internal/votesync/transport/memlog"
	"fortis/internal/votesync/transport/node"
	"fortis/internal/voting"
	"fortis/internal/voting/mocks"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/requestcontext"
)

const (
	election = "e-2026"
	voter    = "52998224725"
	other    = "11144477735"
)

// =============================================================================
// Cast Flow Test Suite
// =============================================================================
// Runs the cast flow against the real authenticator, nullifier guard and sync
// queue; only the failure paths that cannot be provoked through them use
// mocks.

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	now     time.Time
	logger  *slog.Logger
	ledger  *audit.Ledger
	matcher *biometric.StaticMatcher
	roll    *roll.Memory
	auth    *auth.Authenticator
	guard   *nullifier.Guard
	votes   *votememory.Store
	engine  *votesync.Engine
	service *voting.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.now = time.Date(2026, 10, 4, 9, 30, 0, 0, time.UTC)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.ledger, err = audit.New(context.Background(), auditmemory.New(), audit.WithLogger(s.logger))
	s.Require().NoError(err)

	s.matcher = &biometric.StaticMatcher{Fingerprint: 0.95, Facial: 0.92}
	s.roll = roll.NewMemory()
	s.roll.Enroll(election, voter, other)
	lock, err := lockout.New(lockout.NewInMemoryStore())
	s.Require().NoError(err)
	s.auth, err = auth.New(s.matcher, certificate.NewValidator([]string{"ICP-Brasil"}), lock,
		auth.WithLogger(s.logger),
		auth.WithVoterRoll(s.roll),
		auth.WithAuditLogger(s.ledger),
	)
	s.Require().NoError(err)

	circuit, err := nullifier.NewCommitmentCircuit(nullifier.DefaultCircuitParams)
	s.Require().NoError(err)
	s.guard = nullifier.NewGuard(nullifiermemory.New(), circuit,
		nullifier.WithLogger(s.logger),
		nullifier.WithAuditLogger(s.ledger),
	)

	tlog, err := memlog.New(8)
	s.Require().NoError(err)
	n, err := node.GenerateLocal()
	s.Require().NoError(err)
	cfg := votesync.DefaultConfig()
	cfg.ThresholdRequired = 1
	s.votes = votememory.New()
	s.engine, err = votesync.New(s.votes, tlog, []votesync.VerificationNode{n},
		votesync.WithConfig(cfg),
		votesync.WithLogger(s.logger),
		votesync.WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)

	s.service = s.newService(s.auth, s.engine)
}

func (s *ServiceSuite) TearDownTest() {
	s.Require().NoError(s.engine.Shutdown(context.Background()))
	s.ctrl.Finish()
}

func (s *ServiceSuite) newService(a voting.Authenticator, q voting.VoteQueue) *voting.Service {
	svc, err := voting.New(a, s.guard, q,
		voting.WithLogger(s.logger),
		voting.WithAuditLogger(s.ledger),
		voting.WithVoteRecorder(s.roll),
	)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

// request builds a cast for voterID whose proof is derived from secret.
func (s *ServiceSuite) request(voterID string, secret []byte) voting.CastVoteRequest {
	proof, n, commitment, err := s.guard.GenerateVotingProof(secret, "13", election)
	s.Require().NoError(err)
	return voting.CastVoteRequest{
		MachineID:   "urna-042",
		VoterID:     voterID,
		ElectionID:  election,
		CandidateID: "13",
		Biometric:   biometric.Sample{Fingerprint: []byte{0x01}, Facial: []byte{0x02}},
		Ballot: voting.Ballot{
			EncryptedContent: []byte("ciphertext"),
			EncryptionKeyID:  "key-1",
			Signature:        []byte("machine-signature"),
		},
		Proof:          proof,
		Nullifier:      n,
		VoteCommitment: commitment,
	}
}

func (s *ServiceSuite) registered(req voting.CastVoteRequest) bool {
	ok, err := s.guard.IsRegistered(context.Background(), req.Nullifier, election)
	s.Require().NoError(err)
	return ok
}

func (s *ServiceSuite) queued() int {
	n, err := s.engine.PendingCount(context.Background(), "urna-042")
	s.Require().NoError(err)
	return n
}

func (s *ServiceSuite) auditCount(t audit.EventType) int {
	entries, err := s.ledger.Logs(context.Background(), audit.Filter{Types: []audit.EventType{t}})
	s.Require().NoError(err)
	return len(entries)
}

func (s *ServiceSuite) assertEligibility(err error, kind voting.EligibilityKind, code dErrors.Code) {
	var ee *voting.EligibilityError
	s.Require().ErrorAs(err, &ee)
	s.Equal(kind, ee.Kind)
	s.True(dErrors.HasCode(err, code))
}

// =============================================================================
// Successful cast
// =============================================================================

func (s *ServiceSuite) TestCastQueuesBallotAndSpendsNullifier() {
	req := s.request(voter, []byte("voter-secret"))

	result, err := s.service.CastVote(s.ctx(), req)
	s.Require().NoError(err)

	s.Equal(result.VoteID, result.Receipt.VoteID)
	s.Equal(election, result.Receipt.ElectionID)
	s.Equal(s.now, result.Receipt.CastAt)
	s.Len(result.Receipt.Digest, 66)
	s.Equal(auth.OutcomeSuccess, result.Auth.Outcome)

	vote, err := s.votes.GetVote(context.Background(), result.VoteID)
	s.Require().NoError(err)
	s.Equal(votesync.VotePending, vote.SyncStatus)
	s.Equal([]byte(req.Proof), vote.ZKProof)
	s.Equal("urna-042", vote.MachineID)

	s.True(s.registered(req))
	voted, err := s.roll.HasVoted(context.Background(), voter, election)
	s.Require().NoError(err)
	s.True(voted)

	s.Equal(1, s.auditCount(audit.TypeVoteCast))
	s.Equal(1, s.auditCount(audit.TypeNullifierRegistered))
	s.Equal(1, s.auditCount(audit.TypeVoterAuthentication))
}

// =============================================================================
// Eligibility
// =============================================================================

func (s *ServiceSuite) TestSecondCastBySameVoterIsAlreadyVoted() {
	req := s.request(voter, []byte("voter-secret"))
	_, err := s.service.CastVote(s.ctx(), req)
	s.Require().NoError(err)

	_, err = s.service.CastVote(s.ctx(), req)
	s.assertEligibility(err, voting.KindAlreadyVoted, dErrors.CodeForbidden)
	s.Equal(1, s.queued())
	s.Zero(s.auditCount(audit.TypeNullifierRejected), "roll check stops the flow before the guard")
}

func (s *ServiceSuite) TestReplayedNullifierIsRejected() {
	first := s.request(voter, []byte("shared-secret"))
	_, err := s.service.CastVote(s.ctx(), first)
	s.Require().NoError(err)

	replay := s.request(other, []byte("shared-secret"))
	s.Require().Equal(first.Nullifier, replay.Nullifier)

	_, err = s.service.CastVote(s.ctx(), replay)
	s.assertEligibility(err, voting.KindNullifierReplay, dErrors.CodeConflict)
	s.Equal(1, s.queued())
	s.Equal(1, s.auditCount(audit.TypeNullifierRejected))

	voted, err := s.roll.HasVoted(context.Background(), other, election)
	s.Require().NoError(err)
	s.False(voted)
}

func (s *ServiceSuite) TestVoterNotOnRoll() {
	req := s.request("39053344705", []byte("stranger"))

	_, err := s.service.CastVote(s.ctx(), req)
	s.assertEligibility(err, voting.KindNotEligible, dErrors.CodeForbidden)
	s.False(s.registered(req))
	s.Zero(s.queued())
}

// =============================================================================
// Aborted casts
// =============================================================================

func (s *ServiceSuite) TestAuthenticationFailureLeavesNoTrace() {
	s.matcher.Fingerprint, s.matcher.Facial = 0.25, 0.20
	req := s.request(voter, []byte("voter-secret"))

	_, err := s.service.CastVote(s.ctx(), req)

	var ae *auth.Error
	s.Require().ErrorAs(err, &ae)
	s.Equal(auth.KindBiometricFailure, ae.Kind)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.False(s.registered(req))
	s.Zero(s.queued())
	s.Zero(s.auditCount(audit.TypeVoteCast))
}

func (s *ServiceSuite) TestProofNotMatchingInputsIsRejected() {
	req := s.request(voter, []byte("voter-secret"))
	_, _, otherCommitment, err := s.guard.GenerateVotingProof([]byte("voter-secret"), "45", election)
	s.Require().NoError(err)
	req.VoteCommitment = otherCommitment

	_, err = s.service.CastVote(s.ctx(), req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.False(s.registered(req))
	s.Zero(s.queued())
	s.Equal(1, s.auditCount(audit.TypeSecurityAlert))
	s.Zero(s.auditCount(audit.TypeNullifierRegistered))
}

func (s *ServiceSuite) TestIncompleteBallotIsRejectedBeforeAuthentication() {
	authenticator := mocks.NewMockAuthenticator(s.ctrl)
	svc := s.newService(authenticator, s.engine)

	cases := map[string]func(*voting.CastVoteRequest){
		"empty ciphertext": func(r *voting.CastVoteRequest) { r.Ballot.EncryptedContent = nil },
		"empty key id":     func(r *voting.CastVoteRequest) { r.Ballot.EncryptionKeyID = "" },
		"empty signature":  func(r *voting.CastVoteRequest) { r.Ballot.Signature = nil },
		"empty proof":      func(r *voting.CastVoteRequest) { r.Proof = nil },
		"zero nullifier":   func(r *voting.CastVoteRequest) { r.Nullifier = nullifier.Nullifier{} },
		"missing machine":  func(r *voting.CastVoteRequest) { r.MachineID = "" },
		"malformed cpf":    func(r *voting.CastVoteRequest) { r.VoterID = "99999999999" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			req := s.request(voter, []byte("voter-secret"))
			mutate(&req)
			_, err := svc.CastVote(s.ctx(), req)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func (s *ServiceSuite) TestUnexpectedOutcomeIsUnauthorized() {
	authenticator := mocks.NewMockAuthenticator(s.ctrl)
	authenticator.EXPECT().Authenticate(gomock.Any(), gomock.Any()).
		Return(&auth.AuthenticationResult{VoterID: voter, Outcome: auth.OutcomeTimeout}, nil)
	svc := s.newService(authenticator, s.engine)
	req := s.request(voter, []byte("voter-secret"))

	_, err := svc.CastVote(s.ctx(), req)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.False(s.registered(req))
}

func (s *ServiceSuite) TestQueueFailureRaisesSecurityAlert() {
	queue := mocks.NewMockVoteQueue(s.ctrl)
	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(votesync.ErrQueueFull)
	svc := s.newService(s.auth, queue)
	req := s.request(voter, []byte("voter-secret"))

	_, err := svc.CastVote(s.ctx(), req)
	s.True(errors.Is(err, votesync.ErrQueueFull))
	s.True(s.registered(req), "the nullifier stays spent")
	s.Equal(1, s.auditCount(audit.TypeSecurityAlert))
	s.Zero(s.auditCount(audit.TypeVoteCast))
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := voting.New(nil, nil, nil); err == nil {
		t.Fatal("expected error for missing authenticator")
	}
}
