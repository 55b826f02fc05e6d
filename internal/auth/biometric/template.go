package biometric

import (
	"context"
	"math/bits"
	"sync"
)

// TemplateMatcher compares captures with enrolled templates by bitwise
// Hamming similarity. Captures and templates are fixed-length feature
// vectors produced by the terminal's extractor.
type TemplateMatcher struct {
	mu        sync.RWMutex
	templates map[string]templates
}

type templates struct {
	fingerprint []byte
	facial      []byte
}

func NewTemplateMatcher() *TemplateMatcher {
	return &TemplateMatcher{templates: make(map[string]templates)}
}

// Enroll stores the reference templates for a voter.
func (m *TemplateMatcher) Enroll(voterID string, fingerprint, facial []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[voterID] = templates{
		fingerprint: append([]byte(nil), fingerprint...),
		facial:      append([]byte(nil), facial...),
	}
}

func (m *TemplateMatcher) MatchFingerprint(_ context.Context, voterID string, capture []byte) (float64, error) {
	m.mu.RLock()
	t, ok := m.templates[voterID]
	m.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return similarity(t.fingerprint, capture), nil
}

func (m *TemplateMatcher) MatchFacial(_ context.Context, voterID string, capture []byte) (float64, error) {
	m.mu.RLock()
	t, ok := m.templates[voterID]
	m.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return similarity(t.facial, capture), nil
}

// similarity is 1 - hamming/totalBits; vectors of different length score 0.
func similarity(a, b []byte) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	diff := 0
	for i := range a {
		diff += bits.OnesCount8(a[i] ^ b[i])
	}
	return 1 - float64(diff)/float64(len(a)*8)
}

// StaticMatcher returns fixed scores.
type StaticMatcher struct {
	Fingerprint float64
	Facial      float64
}

func (s StaticMatcher) MatchFingerprint(context.Context, string, []byte) (float64, error) {
	return s.Fingerprint, nil
}

func (s StaticMatcher) MatchFacial(context.Context, string, []byte) (float64, error) {
	return s.Facial, nil
}
