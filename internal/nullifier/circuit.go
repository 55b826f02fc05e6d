package nullifier

import (
	"crypto/hmac"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// CircuitParams pins the proving system the verifier accepts.
type CircuitParams struct {
	TrustedSetup  []byte
	CircuitSize   int
	SecurityLevel int
}

var DefaultCircuitParams = CircuitParams{
	TrustedSetup:  []byte("fortis-ceremony-2026"),
	CircuitSize:   1 << 20,
	SecurityLevel: 128,
}

func (p CircuitParams) Validate() error {
	switch {
	case len(p.TrustedSetup) == 0:
		return errors.New("circuit params: trusted setup reference is empty")
	case p.CircuitSize <= 0:
		return errors.New("circuit params: circuit size must be positive")
	case p.SecurityLevel < 128:
		return fmt.Errorf("circuit params: security level %d below 128", p.SecurityLevel)
	}
	return nil
}

// PublicInputs are what a verifier sees. VoteCommitment is only set for
// voting proofs and hides the candidate.
type PublicInputs struct {
	ElectionID     string
	Nullifier      Nullifier
	VoteCommitment []byte
}

// Proof is an opaque proof blob.
type Proof []byte

// Circuit proves and verifies statements about a voter secret.
type Circuit interface {
	Prove(secret []byte, public PublicInputs) (Proof, error)
	Verify(proof Proof, public PublicInputs) bool
}

// CommitmentCircuit binds the public inputs to the trusted setup with a
// keyed BLAKE2b MAC. It checks that a proof was produced against the same
// setup for exactly these inputs; it is not zero knowledge and stands in for
// a SNARK backend with the same contract.
type CommitmentCircuit struct {
	params CircuitParams
	key    []byte
}

func NewCommitmentCircuit(params CircuitParams) (*CommitmentCircuit, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	key := blake2b.Sum256(params.TrustedSetup)
	return &CommitmentCircuit{params: params, key: key[:]}, nil
}

func (c *CommitmentCircuit) Prove(secret []byte, public PublicInputs) (Proof, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty witness")
	}
	if Derive(secret, public.ElectionID) != public.Nullifier {
		return nil, errors.New("witness does not match nullifier")
	}
	return c.tag(public), nil
}

func (c *CommitmentCircuit) Verify(proof Proof, public PublicInputs) bool {
	if len(proof) == 0 || public.Nullifier.IsZero() || public.ElectionID == "" {
		return false
	}
	return hmac.Equal(proof, c.tag(public))
}

func (c *CommitmentCircuit) tag(public PublicInputs) []byte {
	h, err := blake2b.New256(c.key)
	if err != nil {
		panic(err)
	}
	h.Write([]byte(public.ElectionID))
	h.Write([]byte{0})
	h.Write(public.Nullifier[:])
	h.Write(public.VoteCommitment)
	return h.Sum(nil)
}

// VoteCommitment hides the candidate choice behind the voter secret.
func VoteCommitment(secret []byte, candidateID, electionID string) []byte {
	sum := blake2b.Sum256(append(append(append([]byte(nil), secret...), 0), []byte(candidateID+"\x00"+electionID)...))
	return sum[:]
}
