package deepblue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Grara/deepblue-backend/internal/flows"
	"github.com/Grara/deepblue-backend/jwt"
)

// Engine issues, verifies and renews bearer tokens. It is safe for
// concurrent use once built.
type Engine struct {
	config   Config
	codec    *jwt.Manager
	issuer   *TokenIssuer
	store    RefreshStore
	revoker  RefreshRevoker
	consumer RefreshConsumer
	verifier CredentialVerifier
	resolver ScopeResolver
	metrics  *Metrics
	logger   *slog.Logger
	flowDeps flows.Deps
}

// RenewalResult is the outcome of Renew. Reason is ReasonNone exactly when
// Pair is populated.
type RenewalResult struct {
	Pair   TokenPair
	Reason RejectReason
	// Rotated reports whether Pair.RefreshToken replaced the presented one.
	Rotated bool
	// Err is the underlying cause, kept for logging.
	Err error
}

// OK reports whether the renewal succeeded.
func (r RenewalResult) OK() bool {
	return r.Reason == ReasonNone
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Issuer exposes the engine's token issuer.
func (e *Engine) Issuer() *TokenIssuer {
	if e == nil {
		return nil
	}
	return e.issuer
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies credentials and returns a new TokenPair whose refresh half
// has been saved. Wrong credentials yield ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (TokenPair, error) {
	if e == nil || e.verifier == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, identifier, secret, e.flowDeps.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
		return TokenPair{
			GrantType:       GrantTypeBearer,
			AccessToken:     res.Pair.AccessToken,
			RefreshToken:    res.Pair.RefreshToken,
			AccessExpiresAt: res.Pair.AccessExpiresAt,
		}, nil
	case flows.LoginFailureInvalidCredentials:
		return TokenPair{}, ErrInvalidCredentials
	case flows.LoginFailureIssue:
		return TokenPair{}, res.Err
	case flows.LoginFailureStore:
		return TokenPair{}, fmt.Errorf("%w: %w", ErrRefreshStoreUnavailable, res.Err)
	default:
		return TokenPair{}, fmt.Errorf("credential verifier: %w", res.Err)
	}
}

// Renew runs the rotation flow for a presented refresh token and reports
// the reissued pair or the reason it was refused.
func (e *Engine) Renew(ctx context.Context, refreshToken string) RenewalResult {
	if e == nil || e.store == nil {
		return RenewalResult{Reason: ReasonStoreUnavailable, Err: ErrEngineNotReady}
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flowDeps.Refresh)
	reason := refreshReason(res.Failure)
	if reason != ReasonNone {
		switch reason {
		case ReasonUnknownRefreshToken:
			e.metricInc(MetricRefreshUnknownToken)
		case ReasonExpired:
			e.metricInc(MetricRefreshExpired)
		}
		e.logger.Debug("deepblue: refresh rejected", "reason", reason.String(), "subject", res.Subject)
		return RenewalResult{Reason: reason, Err: res.Err}
	}

	return RenewalResult{
		Pair: TokenPair{
			GrantType:       GrantTypeBearer,
			AccessToken:     res.AccessToken,
			RefreshToken:    res.RefreshToken,
			AccessExpiresAt: res.AccessExpiresAt,
		},
		Reason:  ReasonNone,
		Rotated: res.Rotated,
	}
}

// Refresh is Renew with the result folded into (TokenPair, error). The
// error matches the reason's sentinel under errors.Is.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	res := e.Renew(ctx, refreshToken)
	if res.OK() {
		return res.Pair, nil
	}
	if res.Err == nil || errors.Is(res.Err, res.Reason.Err()) {
		return TokenPair{}, res.Reason.Err()
	}
	return TokenPair{}, fmt.Errorf("%w: %v", res.Reason.Err(), res.Err)
}

// Logout removes the refresh token from the store. Unknown tokens are not
// an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	err := flows.RunLogout(ctx, refreshToken, e.flowDeps.Logout)
	if errors.Is(err, flows.ErrLogoutUnsupported) {
		return ErrRevokeUnsupported
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshStoreUnavailable, err)
	}
	return nil
}

// Authenticate validates an access token for the request filter. Every
// failure collapses into (Principal{}, false).
func (e *Engine) Authenticate(token string) (Principal, bool) {
	if e == nil {
		return Principal{}, false
	}
	p, err := e.ValidateAccess(token)
	if err != nil {
		e.metricInc(MetricAuthenticateAnonymous)
		return Principal{}, false
	}
	e.metricInc(MetricAuthenticateSuccess)
	return p, true
}

// ValidateAccess validates an access token and returns the differentiated
// failure.
func (e *Engine) ValidateAccess(token string) (Principal, error) {
	if e == nil || e.codec == nil {
		return Principal{}, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	res := flows.RunValidate(token, e.flowDeps.Validate)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.ValidateFailureNone:
		return Principal{Subject: res.Subject, Scope: res.Scope}, nil
	case flows.ValidateFailureSignature:
		return Principal{}, ErrSignatureMismatch
	case flows.ValidateFailureExpired:
		return Principal{}, ErrTokenExpired
	case flows.ValidateFailureMissingSubject:
		return Principal{}, ErrMissingSubjectClaim
	default:
		return Principal{}, ErrMalformedToken
	}
}

func refreshReason(kind flows.RefreshFailureKind) RejectReason {
	switch kind {
	case flows.RefreshFailureNone:
		return ReasonNone
	case flows.RefreshFailureUnknown:
		return ReasonUnknownRefreshToken
	case flows.RefreshFailureStore:
		return ReasonStoreUnavailable
	case flows.RefreshFailureSignature:
		return ReasonSignatureMismatch
	case flows.RefreshFailureExpired:
		return ReasonExpired
	case flows.RefreshFailureMissingSubject:
		return ReasonMissingSubject
	case flows.RefreshFailureUnresolvable:
		return ReasonSubjectUnresolvable
	case flows.RefreshFailureIssue:
		return ReasonIssueFailed
	default:
		return ReasonMalformedToken
	}
}
