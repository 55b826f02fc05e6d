// Package memlog is an in-process transparency log. Entries are hash
// chained and committed to by a Merkle tree whose capacity is 2^depth.
package memlog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"fortis/internal/votesync"
	"fortis/pkg/platform/sentinel"
)

var ErrLogFull = errors.New("transparency log is full")

type Log struct {
	mu       sync.RWMutex
	leaves   [][]byte
	index    map[string]int
	head     []byte
	capacity int
}

// New creates a log holding at most 2^depth entries.
func New(depth int) (*Log, error) {
	if depth < 1 || depth > 32 {
		return nil, fmt.Errorf("merkle tree depth %d out of range [1,32]", depth)
	}
	return &Log{
		index:    make(map[string]int),
		head:     make([]byte, sha256.Size),
		capacity: 1 << depth,
	}, nil
}

// Submit appends sub and returns the hex chained hash identifying it.
func (l *Log) Submit(ctx context.Context, sub votesync.Submission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.leaves) >= l.capacity {
		return "", ErrLogFull
	}
	h := sha256.New()
	h.Write(l.head)
	h.Write(payload)
	leaf := h.Sum(nil)

	logHash := hex.EncodeToString(leaf)
	l.index[logHash] = len(l.leaves)
	l.leaves = append(l.leaves, leaf)
	l.head = leaf
	return logHash, nil
}

func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.leaves)
}

// Root returns the Merkle tree head over all entries.
func (l *Log) Root() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return treeHash(l.leaves)
}

// Proof is an inclusion proof for one entry against a tree of Size leaves.
type Proof struct {
	Index int
	Size  int
	Path  [][]byte
	Root  []byte
}

func (l *Log) InclusionProof(logHash string) (Proof, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[logHash]
	if !ok {
		return Proof{}, fmt.Errorf("log entry %s: %w", logHash, sentinel.ErrNotFound)
	}
	return Proof{
		Index: i,
		Size:  len(l.leaves),
		Path:  auditPath(i, l.leaves),
		Root:  treeHash(l.leaves),
	}, nil
}

// VerifyInclusion checks that the entry identified by logHash is committed
// to by p.Root.
func VerifyInclusion(logHash string, p Proof) bool {
	leaf, err := hex.DecodeString(logHash)
	if err != nil || p.Index < 0 || p.Index >= p.Size {
		return false
	}
	fn, sn := uint64(p.Index), uint64(p.Size-1)
	r := leafHash(leaf)
	for _, sibling := range p.Path {
		if sn == 0 {
			return false
		}
		if fn&1 == 1 || fn == sn {
			r = nodeHash(sibling, r)
			if fn&1 == 0 {
				shift := bits.TrailingZeros64(fn)
				fn >>= shift
				sn >>= shift
			}
		} else {
			r = nodeHash(r, sibling)
		}
		fn >>= 1
		sn >>= 1
	}
	return sn == 0 && bytes.Equal(r, p.Root)
}

func leafHash(leaf []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x00})
	h.Write(leaf)
	return h.Sum(nil)
}

func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// split returns the largest power of two smaller than n.
func split(n int) int {
	k := 1
	for k<<1 < n {
		k <<= 1
	}
	return k
}

func treeHash(leaves [][]byte) []byte {
	switch len(leaves) {
	case 0:
		sum := sha256.Sum256(nil)
		return sum[:]
	case 1:
		return leafHash(leaves[0])
	}
	k := split(len(leaves))
	return nodeHash(treeHash(leaves[:k]), treeHash(leaves[k:]))
}

func auditPath(m int, leaves [][]byte) [][]byte {
	if len(leaves) <= 1 {
		return nil
	}
	k := split(len(leaves))
	if m < k {
		return append(auditPath(m, leaves[:k]), treeHash(leaves[k:]))
	}
	return append(auditPath(m-k, leaves[k:]), treeHash(leaves[:k]))
}
