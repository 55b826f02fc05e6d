// Package auth fuses biometric scores and optional certificate validation
// into a single authentication decision for a voter at a machine.
package auth

import (
	"fmt"
	"time"

	"fortis/internal/auth/biometric"
	"fortis/internal/auth/certificate"
	dErrors "fortis/pkg/domain-errors"
)

type Method string

const (
	MethodBiometricOnly           Method = "biometric_only"
	MethodCertificateOnly         Method = "certificate_only"
	MethodBiometricAndCertificate Method = "biometric_and_certificate"
)

type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeBiometricFailure   Outcome = "biometric_failure"
	OutcomeCertificateFailure Outcome = "certificate_failure"
	OutcomeNotEligible        Outcome = "not_eligible"
	OutcomeAlreadyVoted       Outcome = "already_voted"
	OutcomeTimeout            Outcome = "timeout"
	OutcomeError              Outcome = "error"
	OutcomeLockedOut          Outcome = "locked_out"
)

// AuthenticateRequest is one attempt. ElectionID is only needed for the
// eligibility lookups that follow a successful match.
type AuthenticateRequest struct {
	MachineID   string
	VoterID     string
	ElectionID  string
	Biometric   biometric.Sample
	Certificate *certificate.Record
}

type AuthenticationResult struct {
	VoterID    string    `json:"voter_id"`
	Method     Method    `json:"method"`
	Confidence float64   `json:"confidence"`
	Outcome    Outcome   `json:"outcome"`
	Timestamp  time.Time `json:"timestamp"`
}

// Authenticated reports whether the credentials matched, regardless of the
// eligibility lookups that followed.
func (r *AuthenticationResult) Authenticated() bool {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeNotEligible, OutcomeAlreadyVoted:
		return true
	default:
		return false
	}
}

type ErrorKind string

const (
	KindBiometricFailure   ErrorKind = "biometric_failure"
	KindCertificateFailure ErrorKind = "certificate_failure"
	KindLockedOut          ErrorKind = "locked_out"
)

// Error is returned for every rejected credential. It unwraps to an
// unauthorized domain error so handlers map it without knowing this type.
type Error struct {
	Kind       ErrorKind
	Reason     string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Kind, e.Reason)
	}
	return "authentication failed: " + string(e.Kind)
}

func (e *Error) Unwrap() error {
	return dErrors.New(dErrors.CodeUnauthorized, string(e.Kind))
}
