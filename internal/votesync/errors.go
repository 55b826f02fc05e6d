package votesync

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidationFailed      ErrorKind = "validation_failed"
	KindNetworkTimeout        ErrorKind = "network_timeout"
	KindInsufficientConsensus ErrorKind = "insufficient_consensus"
	KindStaleVote             ErrorKind = "stale_vote"
)

// SyncError is a per-vote failure. It never aborts the job.
type SyncError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *SyncError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SyncError) Unwrap() error { return e.Err }

// Retryable is false for local validation failures: resubmitting the same
// vote cannot change their outcome.
func (e *SyncError) Retryable() bool {
	return e.Kind == KindNetworkTimeout || e.Kind == KindInsufficientConsensus
}

func AsSyncError(err error) (*SyncError, bool) {
	var se *SyncError
	ok := errors.As(err, &se)
	return se, ok
}
