package flows

import (
	"context"
	"errors"
	"time"

	"github.com/Grara/deepblue-backend/jwt"
)

// RefreshFailureKind classifies renewal failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureEmpty
	RefreshFailureUnknown
	RefreshFailureStore
	RefreshFailureMalformed
	RefreshFailureSignature
	RefreshFailureExpired
	RefreshFailureWrongUse
	RefreshFailureMissingSubject
	RefreshFailureUnresolvable
	RefreshFailureIssue
)

// RefreshState is the last gate a renewal passed.
type RefreshState int

const (
	RefreshPresented RefreshState = iota
	RefreshStoreChecked
	RefreshSignatureChecked
	RefreshReissued
)

// RefreshResult carries either the reissued tokens or failure metadata.
// RefreshToken equals the presented token unless rotation is enabled.
type RefreshResult struct {
	Failure         RefreshFailureKind
	State           RefreshState
	Err             error
	Subject         string
	Scope           string
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	Rotated         bool
}

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess   int
	RefreshFailure   int
	RefreshGraceUsed int
	RefreshRotated   int
}

// RefreshDeps captures renewal dependencies.
type RefreshDeps struct {
	Store  RefreshLookup
	Writer RefreshWriter
	// Taker replaces Store for the lookup when Rotate is set, so a refresh
	// token can be redeemed once.
	Taker RefreshTaker
	// NotFound is the sentinel the store returns for an unknown value.
	NotFound error

	Validate            func(string) (*jwt.Claims, error)
	ParseIgnoringExpiry func(string) (*jwt.Claims, error)
	Now                 func() time.Time
	ExpiryGrace         time.Duration

	// ResolveScope re-reads the subject's scope. Nil leaves the scope empty.
	ResolveScope func(ctx context.Context, subject string) (string, error)
	// UnknownSubject is the sentinel ResolveScope returns for a subject
	// that no longer exists. Any other resolver error counts as a backend
	// failure.
	UnknownSubject error

	IssueAccess  func(subject, scope string) (string, time.Time, error)
	IssueRefresh func(subject string) (string, error)
	Rotate       bool

	MetricInc func(int)
	Warn      func(string, ...any)
	Metrics   RefreshMetrics
}

// RunRefresh walks a presented refresh token through the store check and
// the signature check, then reissues an access token for the same subject.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	state := RefreshPresented
	fail := func(kind RefreshFailureKind, err error, subject string) RefreshResult {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return RefreshResult{Failure: kind, State: state, Err: err, Subject: subject}
	}

	if refreshToken == "" {
		return fail(RefreshFailureEmpty, jwt.ErrMalformed, "")
	}

	// PRESENTED -> STORE_CHECKED
	lookup := deps.Store.FindByValue
	if deps.Rotate {
		lookup = deps.Taker.Take
	}
	if _, err := lookup(ctx, refreshToken); err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return fail(RefreshFailureUnknown, err, "")
		}
		deps.Warn("deepblue: refresh store lookup failed", "error", err)
		return fail(RefreshFailureStore, err, "")
	}
	state = RefreshStoreChecked

	// A taken token is gone from the store. Transient failures past this
	// point put it back so the client can retry with the same value.
	failAfterTake := func(kind RefreshFailureKind, err error, subject string) RefreshResult {
		if deps.Rotate {
			restoreTaken(ctx, refreshToken, subject, deps)
		}
		return fail(kind, err, subject)
	}

	// STORE_CHECKED -> SIGNATURE_CHECKED
	claims, err := deps.Validate(refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			claims, err = graceClaims(refreshToken, deps)
			if err != nil {
				if errors.Is(err, jwt.ErrMissingSubject) {
					return fail(RefreshFailureMissingSubject, err, "")
				}
				return fail(RefreshFailureExpired, err, "")
			}
			deps.MetricInc(deps.Metrics.RefreshGraceUsed)
		case errors.Is(err, jwt.ErrMissingSubject):
			return fail(RefreshFailureMissingSubject, err, "")
		case errors.Is(err, jwt.ErrSignature):
			return fail(RefreshFailureSignature, err, "")
		default:
			return fail(RefreshFailureMalformed, err, "")
		}
	}
	if claims.Use != jwt.UseRefresh {
		return fail(RefreshFailureWrongUse, jwt.ErrInvalidClaims, "")
	}
	state = RefreshSignatureChecked
	subject := claims.Subject

	scope := ""
	if deps.ResolveScope != nil {
		scope, err = deps.ResolveScope(ctx, subject)
		if err != nil {
			if deps.UnknownSubject != nil && errors.Is(err, deps.UnknownSubject) {
				return fail(RefreshFailureUnresolvable, err, subject)
			}
			deps.Warn("deepblue: scope resolution failed", "subject", subject, "error", err)
			return failAfterTake(RefreshFailureStore, err, subject)
		}
	}

	// SIGNATURE_CHECKED -> REISSUED
	access, expiresAt, err := deps.IssueAccess(subject, scope)
	if err != nil {
		return failAfterTake(RefreshFailureIssue, err, subject)
	}

	out := RefreshResult{
		Failure:         RefreshFailureNone,
		Subject:         subject,
		Scope:           scope,
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
		RefreshToken:    refreshToken,
	}

	if deps.Rotate {
		next, err := deps.IssueRefresh(subject)
		if err != nil {
			return failAfterTake(RefreshFailureIssue, err, subject)
		}
		if _, err := deps.Writer.Save(ctx, next); err != nil {
			deps.Warn("deepblue: rotated refresh token save failed", "subject", subject, "error", err)
			return failAfterTake(RefreshFailureStore, err, subject)
		}
		out.RefreshToken = next
		out.Rotated = true
		deps.MetricInc(deps.Metrics.RefreshRotated)
	}

	out.State = RefreshReissued
	deps.MetricInc(deps.Metrics.RefreshSuccess)
	return out
}

// restoreTaken saves a taken refresh token again. It ignores cancellation
// of ctx so an aborted request does not leave the session without a token.
func restoreTaken(ctx context.Context, token, subject string, deps RefreshDeps) {
	if deps.Writer == nil {
		return
	}
	if _, err := deps.Writer.Save(context.WithoutCancel(ctx), token); err != nil {
		deps.Warn("deepblue: restoring taken refresh token failed", "subject", subject, "error", err)
	}
}

// graceClaims accepts an expired refresh token whose exp lies within the
// configured grace window. The signature is re-verified by the parse.
func graceClaims(token string, deps RefreshDeps) (*jwt.Claims, error) {
	if deps.ExpiryGrace <= 0 || deps.ParseIgnoringExpiry == nil {
		return nil, jwt.ErrExpired
	}
	claims, err := deps.ParseIgnoringExpiry(token)
	if err != nil {
		return nil, err
	}
	if !claims.ExpiresAt.Time.Add(deps.ExpiryGrace).After(deps.Now()) {
		return nil, jwt.ErrExpired
	}
	return claims, nil
}
