package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"fortis/internal/audit"
	"fortis/internal/auth/biometric"
	"fortis/internal/auth/certificate"
	"fortis/internal/auth/lockout"
	"fortis/internal/auth/metrics"
	dErrors "fortis/pkg/domain-errors"
	"fortis/pkg/requestcontext"
)

// VoterRoll answers the eligibility lookups owned by the electoral roll.
type VoterRoll interface {
	IsEligible(ctx context.Context, voterID, electionID string) (bool, error)
	HasVoted(ctx context.Context, voterID, electionID string) (bool, error)
}

// AuditLogger is the slice of the audit ledger the authenticator writes to.
type AuditLogger interface {
	LogEvent(ctx context.Context, event audit.Event) (uuid.UUID, error)
}

const DefaultBiometricThreshold = 0.85

type Authenticator struct {
	matcher   biometric.Matcher
	validator *certificate.Validator
	lockout   *lockout.Service
	roll      VoterRoll
	audit     AuditLogger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	threshold float64
}

type Option func(*Authenticator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) { a.logger = logger }
}

func WithVoterRoll(roll VoterRoll) Option {
	return func(a *Authenticator) { a.roll = roll }
}

func WithAuditLogger(l AuditLogger) Option {
	return func(a *Authenticator) { a.audit = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

func WithBiometricThreshold(t float64) Option {
	return func(a *Authenticator) { a.threshold = t }
}

func New(matcher biometric.Matcher, validator *certificate.Validator, lock *lockout.Service, opts ...Option) (*Authenticator, error) {
	if matcher == nil {
		return nil, errors.New("biometric matcher is required")
	}
	if validator == nil {
		return nil, errors.New("certificate validator is required")
	}
	if lock == nil {
		return nil, errors.New("lockout service is required")
	}
	a := &Authenticator{
		matcher:   matcher,
		validator: validator,
		lockout:   lock,
		logger:    slog.Default(),
		threshold: DefaultBiometricThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate runs one attempt. Rejected credentials return the result
// together with an *Error; eligibility outcomes return the result alone.
// Every attempt is recorded in the audit ledger before returning, and an
// attempt that cannot be recorded fails.
func (a *Authenticator) Authenticate(ctx context.Context, req AuthenticateRequest) (*AuthenticationResult, error) {
	if req.VoterID == "" || req.MachineID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "voter id and machine id are required")
	}

	result := &AuthenticationResult{
		VoterID:   req.VoterID,
		Method:    MethodBiometricOnly,
		Timestamp: requestcontext.Now(ctx),
	}
	if req.Certificate != nil {
		result.Method = MethodBiometricAndCertificate
	}
	keys := []string{lockout.VoterKey(req.VoterID), lockout.MachineKey(req.MachineID)}

	for _, key := range keys {
		status, err := a.lockout.Check(ctx, key)
		if err != nil {
			return a.finishWithError(ctx, req, result, err)
		}
		if status.Locked {
			result.Outcome = OutcomeLockedOut
			if err := a.record(ctx, req, result); err != nil {
				return nil, err
			}
			a.metrics.IncLockoutRejected()
			return result, &Error{Kind: KindLockedOut, Reason: key, RetryAfter: status.RetryAfter}
		}
	}

	bio, bioErr := biometric.Evaluate(ctx, a.matcher, req.VoterID, req.Biometric, a.threshold)
	result.Confidence = bio.Combined
	a.metrics.ObserveConfidence(bio.Combined)
	if bioErr != nil && !isCaptureError(bioErr) {
		return a.finishWithError(ctx, req, result, bioErr)
	}
	bioPassed := bioErr == nil && bio.Passed

	var certErr error
	if req.Certificate != nil {
		certErr = a.validator.Validate(ctx, *req.Certificate)
		if certErr != nil && !certificate.IsRefusal(certErr) {
			return a.finishWithError(ctx, req, result, certErr)
		}
	}

	var failure *Error
	switch {
	case certErr != nil:
		failure = &Error{Kind: KindCertificateFailure, Reason: refusalReason(certErr)}
		result.Outcome = OutcomeCertificateFailure
	case !bioPassed:
		failure = &Error{Kind: KindBiometricFailure}
		if bioErr != nil {
			failure.Reason = bioErr.Error()
		}
		result.Outcome = OutcomeBiometricFailure
	}

	if failure != nil {
		for _, key := range keys {
			if _, err := a.lockout.RecordFailure(ctx, key); err != nil {
				return a.finishWithError(ctx, req, result, err)
			}
		}
		if err := a.record(ctx, req, result); err != nil {
			return nil, err
		}
		return result, failure
	}

	for _, key := range keys {
		if err := a.lockout.Clear(ctx, key); err != nil {
			return a.finishWithError(ctx, req, result, err)
		}
	}

	result.Outcome = OutcomeSuccess
	if a.roll != nil && req.ElectionID != "" {
		outcome, err := a.checkRoll(ctx, req)
		if err != nil {
			return a.finishWithError(ctx, req, result, err)
		}
		result.Outcome = outcome
	}

	if err := a.record(ctx, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Authenticator) checkRoll(ctx context.Context, req AuthenticateRequest) (Outcome, error) {
	eligible, err := a.roll.IsEligible(ctx, req.VoterID, req.ElectionID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "voter roll unavailable")
	}
	if !eligible {
		return OutcomeNotEligible, nil
	}
	voted, err := a.roll.HasVoted(ctx, req.VoterID, req.ElectionID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "voter roll unavailable")
	}
	if voted {
		return OutcomeAlreadyVoted, nil
	}
	return OutcomeSuccess, nil
}

// finishWithError records an attempt that failed for reasons other than the
// credentials themselves. Lockout counters are left untouched.
func (a *Authenticator) finishWithError(ctx context.Context, req AuthenticateRequest, result *AuthenticationResult, cause error) (*AuthenticationResult, error) {
	result.Outcome = OutcomeError
	code := dErrors.CodeUnavailable
	if errors.Is(cause, context.DeadlineExceeded) {
		result.Outcome = OutcomeTimeout
		code = dErrors.CodeTimeout
	}
	a.logger.ErrorContext(ctx, "authentication attempt errored",
		"voter_id", req.VoterID,
		"machine_id", req.MachineID,
		"outcome", result.Outcome,
		"error", cause,
	)
	if err := a.record(ctx, req, result); err != nil {
		return nil, err
	}
	if dErrors.CodeOf(cause) != dErrors.CodeInternal {
		return result, cause
	}
	return result, dErrors.Wrap(cause, code, "authentication could not complete")
}

func (a *Authenticator) record(ctx context.Context, req AuthenticateRequest, result *AuthenticationResult) error {
	a.metrics.IncAttempt(string(result.Outcome))
	a.logger.InfoContext(ctx, "voter_authentication",
		"event", "voter_authentication",
		"log_type", "audit",
		"voter_id", req.VoterID,
		"machine_id", req.MachineID,
		"method", result.Method,
		"outcome", result.Outcome,
		"confidence", result.Confidence,
	)
	if a.audit == nil {
		return nil
	}
	_, err := a.audit.LogEvent(ctx, audit.VoterAuthentication{
		MachineID:  req.MachineID,
		VoterID:    req.VoterID,
		Method:     string(result.Method),
		Outcome:    string(result.Outcome),
		Confidence: result.Confidence,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record authentication attempt")
	}
	return nil
}

// isCaptureError separates a malformed live capture, which counts as a
// failed match, from a matcher that could not answer.
func isCaptureError(err error) bool {
	var ce *biometric.CaptureError
	return errors.As(err, &ce)
}

func refusalReason(err error) string {
	var ve *certificate.ValidationError
	if errors.As(err, &ve) {
		return string(ve.Reason)
	}
	return err.Error()
}
