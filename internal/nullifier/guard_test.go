package nullifier_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fortis/internal/audit"
	auditmemory "fortis/internal/audit/store/memory"
	"fortis/internal/nullifier"
	"fortis/internal/nullifier/store/memory"
	dErrors "fortis/pkg/domain-errors"
)

type GuardSuite struct {
	suite.Suite
	ctx    context.Context
	guard  *nullifier.Guard
	ledger *audit.Ledger
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.ctx = context.Background()
	circuit, err := nullifier.NewCommitmentCircuit(nullifier.DefaultCircuitParams)
	s.Require().NoError(err)
	s.ledger, err = audit.New(s.ctx, auditmemory.New())
	s.Require().NoError(err)
	s.guard = nullifier.NewGuard(memory.New(), circuit, nullifier.WithAuditLogger(s.ledger))
}

func (s *GuardSuite) TestDerivationIsDeterministicPerElection() {
	secret := []byte("voter-secret-1")
	_, n1, err := s.guard.GenerateEligibilityProof(secret, "2026-general")
	s.Require().NoError(err)
	_, n2, err := s.guard.GenerateEligibilityProof(secret, "2026-general")
	s.Require().NoError(err)
	_, other, err := s.guard.GenerateEligibilityProof(secret, "2026-runoff")
	s.Require().NoError(err)

	s.Equal(n1, n2)
	s.NotEqual(n1, other)

	_, voting, _, err := s.guard.GenerateVotingProof(secret, "candidate-13", "2026-general")
	s.Require().NoError(err)
	s.Equal(n1, voting, "voting and eligibility proofs share the election nullifier")
}

func (s *GuardSuite) TestVerify() {
	secret := []byte("voter-secret-2")
	proof, n, commitment, err := s.guard.GenerateVotingProof(secret, "candidate-22", "2026-general")
	s.Require().NoError(err)

	public := nullifier.PublicInputs{ElectionID: "2026-general", Nullifier: n, VoteCommitment: commitment}
	s.True(s.guard.Verify(proof, public))

	s.Run("different election", func() {
		other := public
		other.ElectionID = "2026-runoff"
		s.False(s.guard.Verify(proof, other))
	})
	s.Run("swapped commitment", func() {
		other := public
		other.VoteCommitment = nullifier.VoteCommitment(secret, "candidate-45", "2026-general")
		s.False(s.guard.Verify(proof, other))
	})
	s.Run("empty proof", func() {
		s.False(s.guard.Verify(nil, public))
	})
	s.Run("proof from another trusted setup", func() {
		params := nullifier.DefaultCircuitParams
		params.TrustedSetup = []byte("rogue-ceremony")
		rogue, err := nullifier.NewCommitmentCircuit(params)
		s.Require().NoError(err)
		forged, err := rogue.Prove(secret, public)
		s.Require().NoError(err)
		s.False(s.guard.Verify(forged, public))
	})
}

func (s *GuardSuite) TestInvalidWitness() {
	_, _, err := s.guard.GenerateEligibilityProof(nil, "2026-general")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, _, err = s.guard.GenerateEligibilityProof([]byte("x"), "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *GuardSuite) TestCheckAndRegister() {
	_, n, err := s.guard.GenerateEligibilityProof([]byte("voter-secret-3"), "2026-general")
	s.Require().NoError(err)

	decision, err := s.guard.CheckAndRegister(s.ctx, n, "2026-general")
	s.Require().NoError(err)
	s.Equal(nullifier.Accepted, decision)

	decision, err = s.guard.CheckAndRegister(s.ctx, n, "2026-general")
	s.Require().NoError(err)
	s.Equal(nullifier.RejectedAlreadyUsed, decision)

	s.Run("same nullifier in another election is independent", func() {
		decision, err := s.guard.CheckAndRegister(s.ctx, n, "2026-runoff")
		s.Require().NoError(err)
		s.Equal(nullifier.Accepted, decision)
	})

	s.Run("lookup", func() {
		ok, err := s.guard.IsRegistered(s.ctx, n, "2026-general")
		s.Require().NoError(err)
		s.True(ok)
		ok, err = s.guard.IsRegistered(s.ctx, n, "2027-general")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("rejection is audited", func() {
		rejected, err := s.ledger.Logs(s.ctx, audit.Filter{Types: []audit.EventType{audit.TypeNullifierRejected}})
		s.Require().NoError(err)
		s.Require().Len(rejected, 1)
		event, err := rejected[0].Event()
		s.Require().NoError(err)
		s.Equal(n.String(), event.(*audit.NullifierRejected).Nullifier)
	})
}

func TestCheckAndRegisterConcurrent(t *testing.T) {
	circuit, err := nullifier.NewCommitmentCircuit(nullifier.DefaultCircuitParams)
	require.NoError(t, err)
	guard := nullifier.NewGuard(memory.New(), circuit)
	n := nullifier.Derive([]byte("contended"), "2026-general")

	const callers = 200
	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := guard.CheckAndRegister(context.Background(), n, "2026-general")
			assert.NoError(t, err)
			switch decision {
			case nullifier.Accepted:
				accepted.Add(1)
			case nullifier.RejectedAlreadyUsed:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(callers-1), rejected.Load())
}

func TestParse(t *testing.T) {
	n := nullifier.Derive([]byte("s"), "e")
	parsed, err := nullifier.Parse(n.String())
	require.NoError(t, err)
	assert.Equal(t, n, parsed)

	_, err = nullifier.Parse("abcd")
	assert.Error(t, err)
	_, err = nullifier.Parse("zz")
	assert.Error(t, err)
}

func TestCircuitParamsValidate(t *testing.T) {
	assert.NoError(t, nullifier.DefaultCircuitParams.Validate())
	weak := nullifier.DefaultCircuitParams
	weak.SecurityLevel = 80
	assert.Error(t, weak.Validate())
	_, err := nullifier.NewCommitmentCircuit(nullifier.CircuitParams{})
	assert.Error(t, err)
}
