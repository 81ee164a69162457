package flows

import (
	"errors"

	"github.com/Grara/deepblue-backend/jwt"
)

// ValidateFailureKind classifies access-token validation failures for
// root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureEmpty
	ValidateFailureMalformed
	ValidateFailureSignature
	ValidateFailureExpired
	ValidateFailureMissingSubject
	ValidateFailureWrongUse
)

// ValidateResult carries either the verified identity or a failure kind.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Subject string
	Scope   string
}

// ValidateDeps captures access validation dependencies.
type ValidateDeps struct {
	Parse func(string) (*jwt.Claims, error)
}

// RunValidate verifies an access token. Refresh-use tokens are refused so a
// long-lived credential cannot stand in for a short-lived one.
func RunValidate(token string, deps ValidateDeps) ValidateResult {
	if token == "" {
		return ValidateResult{Failure: ValidateFailureEmpty, Err: jwt.ErrMalformed}
	}

	claims, err := deps.Parse(token)
	if err != nil {
		return ValidateResult{Failure: classifyCodecError(err), Err: err}
	}
	if claims.Use != jwt.UseAccess {
		return ValidateResult{Failure: ValidateFailureWrongUse, Err: jwt.ErrInvalidClaims}
	}

	return ValidateResult{
		Failure: ValidateFailureNone,
		Subject: claims.Subject,
		Scope:   claims.Scope,
	}
}

func classifyCodecError(err error) ValidateFailureKind {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return ValidateFailureExpired
	case errors.Is(err, jwt.ErrSignature):
		return ValidateFailureSignature
	case errors.Is(err, jwt.ErrMissingSubject):
		return ValidateFailureMissingSubject
	default:
		return ValidateFailureMalformed
	}
}
