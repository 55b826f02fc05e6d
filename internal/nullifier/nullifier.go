// Package nullifier guards against double voting. A voter's secret and the
// election id deterministically derive a nullifier; registering it is the
// one atomic step that decides whether a vote may be queued.
package nullifier

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the byte length of a nullifier.
const Size = 32

var nullifierDomain = []byte("fortis/nullifier/v1")

// Nullifier is an opaque 32-byte token unique per (voter, election).
type Nullifier [Size]byte

func (n Nullifier) String() string {
	return hex.EncodeToString(n[:])
}

func (n Nullifier) IsZero() bool {
	return n == Nullifier{}
}

// Parse decodes the hex wire form.
func Parse(s string) (Nullifier, error) {
	var n Nullifier
	raw, err := hex.DecodeString(s)
	if err != nil {
		return n, fmt.Errorf("decode nullifier: %w", err)
	}
	if len(raw) != Size {
		return n, fmt.Errorf("nullifier must be %d bytes, got %d", Size, len(raw))
	}
	copy(n[:], raw)
	return n, nil
}

// Derive computes BLAKE2b-256 keyed by the nullifier domain over
// secret ∥ 0x00 ∥ electionID.
func Derive(secret []byte, electionID string) Nullifier {
	h, err := blake2b.New256(nullifierDomain)
	if err != nil {
		// the key is a constant shorter than blake2b.Size
		panic(err)
	}
	h.Write(secret)
	h.Write([]byte{0})
	h.Write([]byte(electionID))
	var n Nullifier
	copy(n[:], h.Sum(nil))
	return n
}

// Decision is the outcome of CheckAndRegister.
type Decision int

const (
	Accepted Decision = iota + 1
	RejectedAlreadyUsed
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case RejectedAlreadyUsed:
		return "already_used"
	default:
		return "unknown"
	}
}
