package flows

import (
	"context"
	"errors"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidCredentials
	LoginFailureVerifier
	LoginFailureIssue
	LoginFailureStore
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Subject string
	Scope   string
	Pair    IssuedPair
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess int
	LoginFailure int
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	// VerifyCredentials returns the authenticated subject and scope.
	VerifyCredentials func(ctx context.Context, identifier, secret string) (subject, scope string, err error)
	// InvalidCredentials is the sentinel the verifier returns on mismatch.
	InvalidCredentials error
	IssuePair          func(subject, scope string) (IssuedPair, error)
	Store              RefreshWriter

	MetricInc func(int)
	Warn      func(string, ...any)
	Metrics   LoginMetrics
}

// RunLogin verifies credentials, signs a pair and persists the refresh
// half. No token is returned unless every step succeeded.
func RunLogin(ctx context.Context, identifier, secret string, deps LoginDeps) LoginResult {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.Warn == nil {
		deps.Warn = noopWarn
	}

	fail := func(kind LoginFailureKind, err error) LoginResult {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return LoginResult{Failure: kind, Err: err}
	}

	if identifier == "" || secret == "" {
		return fail(LoginFailureInvalidCredentials, deps.InvalidCredentials)
	}

	subject, scope, err := deps.VerifyCredentials(ctx, identifier, secret)
	if err != nil {
		if deps.InvalidCredentials != nil && errors.Is(err, deps.InvalidCredentials) {
			return fail(LoginFailureInvalidCredentials, err)
		}
		deps.Warn("deepblue: credential verifier failed", "identifier", identifier, "error", err)
		return fail(LoginFailureVerifier, err)
	}
	if subject == "" {
		return fail(LoginFailureVerifier, errors.New("credential verifier returned empty subject"))
	}

	pair, err := deps.IssuePair(subject, scope)
	if err != nil {
		return fail(LoginFailureIssue, err)
	}

	if _, err := deps.Store.Save(ctx, pair.RefreshToken); err != nil {
		deps.Warn("deepblue: refresh token save failed", "subject", subject, "error", err)
		return fail(LoginFailureStore, err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	return LoginResult{
		Failure: LoginFailureNone,
		Subject: subject,
		Scope:   scope,
		Pair:    pair,
	}
}
