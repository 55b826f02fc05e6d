package jwttoken

import (
	authmw "fortis/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *MachineClaims) *authmw.SessionClaims {
	return &authmw.SessionClaims{
		MachineID: claims.MachineID,
		SessionID: claims.SessionID,
		JTI:       claims.ID,
	}
}

// ValidatorAdapter satisfies the session middleware's validator interface.
type ValidatorAdapter struct {
	validator *Validator
}

func NewValidatorAdapter(v *Validator) *ValidatorAdapter {
	return &ValidatorAdapter{validator: v}
}

func (a *ValidatorAdapter) ValidateToken(tokenString string) (*authmw.SessionClaims, error) {
	claims, err := a.validator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
