package audit

import (
	"errors"
	"fmt"

	dErrors "fortis/pkg/domain-errors"
)

type ErrorKind string

const (
	KindIntegrityViolation ErrorKind = "integrity_violation"
	KindExportFailure      ErrorKind = "export_failure"
)

// Error is returned by ledger operations that fail for audit reasons
// rather than storage reasons.
type Error struct {
	Kind  ErrorKind
	Index uint64
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIntegrityViolation:
		return fmt.Sprintf("audit integrity violation at index %d", e.Index)
	default:
		if e.Err != nil {
			return fmt.Sprintf("audit %s: %v", e.Kind, e.Err)
		}
		return "audit " + string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrLedgerHalted is returned by reconciliation callers while a broken chain
// awaits manual review.
var ErrLedgerHalted = dErrors.New(dErrors.CodeInvariantViolation, "audit ledger halted after integrity violation")

// IsIntegrityViolation reports whether err carries an integrity violation.
func IsIntegrityViolation(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == KindIntegrityViolation
}
