package deepblue

import (
	"fmt"
	"time"

	"github.com/Grara/deepblue-backend/jwt"
)

// TokenIssuer turns an authenticated Principal into signed tokens. It holds
// no state beyond the codec and TTLs, and persists nothing.
type TokenIssuer struct {
	codec      *jwt.Manager
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer returns an issuer signing with codec.
func NewTokenIssuer(codec *jwt.Manager, accessTTL, refreshTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}
}

// IssueTokenPair signs an access token carrying p's subject and scope and a
// refresh token carrying only the subject.
func (i *TokenIssuer) IssueTokenPair(p Principal) (TokenPair, error) {
	access, expiresAt, err := i.IssueAccess(p)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := i.IssueRefresh(p.Subject)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		GrantType:       GrantTypeBearer,
		AccessToken:     access,
		RefreshToken:    refreshToken,
		AccessExpiresAt: expiresAt,
	}, nil
}

// IssueAccess signs a single access token and reports when it expires.
func (i *TokenIssuer) IssueAccess(p Principal) (string, time.Time, error) {
	expiresAt := i.now().Add(i.accessTTL).Truncate(time.Second)
	token, err := i.codec.Issue(p.Subject, p.Scope, jwt.UseAccess, i.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: access: %v", ErrTokenIssueFailed, err)
	}
	return token, expiresAt, nil
}

// IssueRefresh signs a refresh token for subject.
func (i *TokenIssuer) IssueRefresh(subject string) (string, error) {
	token, err := i.codec.Issue(subject, "", jwt.UseRefresh, i.refreshTTL)
	if err != nil {
		return "", fmt.Errorf("%w: refresh: %v", ErrTokenIssueFailed, err)
	}
	return token, nil
}
