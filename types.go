package deepblue

import (
	"context"
	"time"

	"github.com/Grara/deepblue-backend/refresh"
)

// GrantTypeBearer is the grant type reported with every issued TokenPair.
const GrantTypeBearer = "Bearer"

// Principal is the authenticated identity derived from a valid access token.
// It is a value type: handlers receive a copy and cannot alter what the
// filter attached to the request.
type Principal struct {
	Subject string `json:"subject"`
	Scope   string `json:"scope,omitempty"`
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool {
	return p.Subject == ""
}

// TokenPair is the result of a login or renewal. The access half is never
// persisted; the refresh half is owned by the RefreshStore.
type TokenPair struct {
	GrantType       string    `json:"grantType"`
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// CredentialVerifier checks an identifier/secret pair against stored
// credentials. Implementations return ErrInvalidCredentials (possibly
// wrapped) for an unknown identifier or a wrong secret, and any other error
// for backend failures.
//
//	Docs: internal/members provides the bundled SQL implementation.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, identifier, secret string) (Principal, error)
}

// ScopeResolver is optionally implemented by a CredentialVerifier. When
// present, renewal re-reads the subject's current scope instead of issuing an
// access token without one, since refresh tokens never carry scope.
// Implementations wrap ErrSubjectUnresolvable for a subject that no longer
// exists; any other error is treated as a retryable backend failure.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, subject string) (string, error)
}

// RefreshStore persists issued refresh tokens keyed by value. Absence from
// the store is the only revocation signal the engine relies on.
type RefreshStore interface {
	Save(ctx context.Context, value string) (string, error)
	FindByValue(ctx context.Context, value string) (*refresh.Record, error)
}

// RefreshRevoker is optionally implemented by a RefreshStore. Logout
// requires it.
type RefreshRevoker interface {
	Delete(ctx context.Context, value string) error
}

// RefreshConsumer is optionally implemented by a RefreshStore. Take removes
// and returns a record atomically; refresh-token rotation requires it so a
// presented token can be redeemed once.
type RefreshConsumer interface {
	Take(ctx context.Context, value string) (*refresh.Record, error)
}
