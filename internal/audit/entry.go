package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Entry is one link of the audit chain. Payload holds the canonical encoding
// of the event; Hash covers type, payload, timestamp and PrevHash.
type Entry struct {
	ID        uuid.UUID
	Index     uint64
	Type      EventType
	Payload   []byte
	Timestamp time.Time
	PrevHash  string
	Hash      string
}

// Event decodes the entry payload into its typed variant.
func (e Entry) Event() (Event, error) {
	return DecodeEvent(e.Type, e.Payload)
}

// Text is what the analyzer matches against.
func (e Entry) Text() string {
	return string(e.Type) + " " + string(e.Payload)
}

// ComputeHash returns SHA-256(type ∥ payload ∥ timestamp ∥ prevHash), hex encoded.
// Timestamps are rendered as UTC RFC3339Nano so the input survives storage round trips.
func ComputeHash(t EventType, payload []byte, ts time.Time, prevHash string) string {
	h := sha256.New()
	h.Write([]byte(t))
	h.Write(payload)
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether the stored hash matches the entry contents.
func (e Entry) Valid() bool {
	return e.Hash == ComputeHash(e.Type, e.Payload, e.Timestamp, e.PrevHash)
}

// GenesisAnchor derives the root PrevHash from the configured genesis label.
func GenesisAnchor(label string) string {
	sum := sha256.Sum256([]byte(label))
	return hex.EncodeToString(sum[:])
}

// Checkpoint is the chain root: the first retained entry must have
// PrevHash == Anchor and Index == NextIndex. Pruning moves it forward.
type Checkpoint struct {
	NextIndex uint64
	Anchor    string
}
