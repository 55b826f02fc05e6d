package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "fortis/pkg/domain-errors"
)

// MachineClaims are carried by the session token a voting machine presents.
// Tokens are issued by the election authority; this service only validates.
type MachineClaims struct {
	MachineID string `json:"machine_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Validator checks HS256 machine-session tokens.
type Validator struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

type Option func(*Validator)

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) Option {
	return func(v *Validator) { v.issuer = issuer }
}

// WithAudience requires aud to contain audience.
func WithAudience(audience string) Option {
	return func(v *Validator) { v.audience = audience }
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func NewValidator(signingKey string, opts ...Option) *Validator {
	v := &Validator{signingKey: []byte(signingKey), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) ValidateToken(tokenString string) (*MachineClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &MachineClaims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*MachineClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.MachineID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no machine id")
	}
	return claims, nil
}
