// Package biometric scores live fingerprint and facial captures against a
// voter's enrolled templates.
package biometric

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Sample is a live capture. It is never persisted.
type Sample struct {
	Fingerprint     []byte
	FingerprintHash string
	Facial          []byte
	FacialHash      string
	CapturedAt      time.Time
}

// CaptureError reports a live capture that cannot be scored.
type CaptureError struct {
	Reason string
}

func (e *CaptureError) Error() string { return "invalid biometric capture: " + e.Reason }

// Validate checks that both modalities are present and, when the capture
// device supplied digests, that the data matches them.
func (s Sample) Validate() error {
	if len(s.Fingerprint) == 0 || len(s.Facial) == 0 {
		return &CaptureError{Reason: "fingerprint and facial captures are required"}
	}
	if s.FingerprintHash != "" && digest(s.Fingerprint) != s.FingerprintHash {
		return &CaptureError{Reason: "fingerprint digest mismatch"}
	}
	if s.FacialHash != "" && digest(s.Facial) != s.FacialHash {
		return &CaptureError{Reason: "facial digest mismatch"}
	}
	return nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Matcher returns similarity scores in [0,1].
type Matcher interface {
	MatchFingerprint(ctx context.Context, voterID string, capture []byte) (float64, error)
	MatchFacial(ctx context.Context, voterID string, capture []byte) (float64, error)
}

// Result is the scored capture.
type Result struct {
	Fingerprint float64
	Facial      float64
	Combined    float64
	Passed      bool
}

// Evaluate averages both modality scores and passes iff the average reaches threshold.
func Evaluate(ctx context.Context, m Matcher, voterID string, sample Sample, threshold float64) (Result, error) {
	if err := sample.Validate(); err != nil {
		return Result{}, err
	}
	fp, err := m.MatchFingerprint(ctx, voterID, sample.Fingerprint)
	if err != nil {
		return Result{}, fmt.Errorf("match fingerprint: %w", err)
	}
	facial, err := m.MatchFacial(ctx, voterID, sample.Facial)
	if err != nil {
		return Result{}, fmt.Errorf("match facial: %w", err)
	}
	fp, facial = clamp(fp), clamp(facial)
	combined := (fp + facial) / 2
	return Result{
		Fingerprint: fp,
		Facial:      facial,
		Combined:    combined,
		Passed:      combined >= threshold,
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
