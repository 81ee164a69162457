package deepblue

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the verifier rejects the identifier or secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMalformedToken is returned when a token cannot be decoded or its claims are unusable.
	ErrMalformedToken = errors.New("malformed token")
	// ErrSignatureMismatch is returned when a token's signature does not verify.
	ErrSignatureMismatch = errors.New("token signature mismatch")
	// ErrTokenExpired is returned for a validly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnknownRefreshToken is returned when a presented refresh token is not in the store.
	ErrUnknownRefreshToken = errors.New("refresh token not recognized")
	// ErrMissingSubjectClaim is returned when a validly signed token has no subject.
	ErrMissingSubjectClaim = errors.New("invalid token contents")
	// ErrSubjectUnresolvable is returned when renewal cannot re-resolve the subject's scope.
	ErrSubjectUnresolvable = errors.New("token subject no longer resolvable")
	// ErrRefreshStoreUnavailable is returned when the refresh store fails.
	ErrRefreshStoreUnavailable = errors.New("refresh store unavailable")
	// ErrTokenIssueFailed is returned when signing a new token fails.
	ErrTokenIssueFailed = errors.New("token issuance failed")
	// ErrRevokeUnsupported is returned by Logout when the store cannot delete records.
	ErrRevokeUnsupported = errors.New("refresh store cannot revoke tokens")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not ready")
)

// RejectReason names why a renewal was refused. The zero value means the
// renewal succeeded.
type RejectReason int

const (
	ReasonNone RejectReason = iota
	ReasonUnknownRefreshToken
	ReasonMalformedToken
	ReasonSignatureMismatch
	ReasonExpired
	ReasonMissingSubject
	ReasonSubjectUnresolvable
	ReasonStoreUnavailable
	ReasonIssueFailed
)

var reasonNames = [...]string{
	ReasonNone:                "none",
	ReasonUnknownRefreshToken: "unknown_refresh_token",
	ReasonMalformedToken:      "malformed_token",
	ReasonSignatureMismatch:   "signature_mismatch",
	ReasonExpired:             "expired",
	ReasonMissingSubject:      "missing_subject_claim",
	ReasonSubjectUnresolvable: "subject_unresolvable",
	ReasonStoreUnavailable:    "store_unavailable",
	ReasonIssueFailed:         "issue_failed",
}

func (r RejectReason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// Err returns the sentinel error matching r, or nil for ReasonNone.
func (r RejectReason) Err() error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonUnknownRefreshToken:
		return ErrUnknownRefreshToken
	case ReasonMalformedToken:
		return ErrMalformedToken
	case ReasonSignatureMismatch:
		return ErrSignatureMismatch
	case ReasonExpired:
		return ErrTokenExpired
	case ReasonMissingSubject:
		return ErrMissingSubjectClaim
	case ReasonSubjectUnresolvable:
		return ErrSubjectUnresolvable
	case ReasonStoreUnavailable:
		return ErrRefreshStoreUnavailable
	default:
		return ErrTokenIssueFailed
	}
}
