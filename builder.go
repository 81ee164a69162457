package deepblue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Grara/deepblue-backend/internal/flows"
	"github.com/Grara/deepblue-backend/jwt"
	"github.com/Grara/deepblue-backend/refresh"
)

// Builder wires an Engine from explicit collaborators. A Builder produces
// at most one Engine.
type Builder struct {
	config Config

	store    RefreshStore
	verifier CredentialVerifier
	resolver ScopeResolver
	logger   *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRefreshStore sets the store that owns issued refresh tokens. Logout
// needs it to implement RefreshRevoker; refresh-token rotation needs
// RefreshConsumer.
func (b *Builder) WithRefreshStore(store RefreshStore) *Builder {
	b.store = store
	return b
}

// WithCredentialVerifier sets the login collaborator. If it also
// implements ScopeResolver, renewal uses it to re-read scope.
func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithScopeResolver overrides the resolver discovered on the verifier.
func (b *Builder) WithScopeResolver(r ScopeResolver) *Builder {
	b.resolver = r
	return b
}

// WithLogger sets the logger. Default slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and collaborators and returns a ready
// Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("refresh store required")
	}
	if b.verifier == nil {
		return nil, errors.New("credential verifier required")
	}

	revoker, _ := b.store.(RefreshRevoker)
	consumer, _ := b.store.(RefreshConsumer)
	if cfg.Refresh.RotateRefreshToken && consumer == nil {
		return nil, errors.New("RotateRefreshToken requires a refresh store implementing RefreshConsumer")
	}

	resolver := b.resolver
	if resolver == nil {
		resolver, _ = b.verifier.(ScopeResolver)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(strings.TrimSpace(cfg.JWT.SigningMethod))),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		Leeway:        cfg.JWT.Leeway,
		Now:           cfg.JWT.Now,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:   cfg,
		codec:    codec,
		issuer:   NewTokenIssuer(codec, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, cfg.JWT.Now),
		store:    b.store,
		revoker:  revoker,
		consumer: consumer,
		verifier: b.verifier,
		resolver: resolver,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
	}
	e.flowDeps = e.buildFlowDeps()

	b.built = true
	return e, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	warn := func(msg string, args ...any) { e.logger.Warn(msg, args...) }

	var deleter flows.RefreshDeleter
	if e.revoker != nil {
		deleter = e.revoker
	}

	var taker flows.RefreshTaker
	if e.consumer != nil {
		taker = e.consumer
	}

	var resolveScope func(ctx context.Context, subject string) (string, error)
	if e.resolver != nil {
		resolveScope = e.resolver.ResolveScope
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			VerifyCredentials: func(ctx context.Context, identifier, secret string) (string, string, error) {
				p, err := e.verifier.VerifyCredentials(ctx, identifier, secret)
				return p.Subject, p.Scope, err
			},
			InvalidCredentials: ErrInvalidCredentials,
			IssuePair: func(subject, scope string) (flows.IssuedPair, error) {
				pair, err := e.issuer.IssueTokenPair(Principal{Subject: subject, Scope: scope})
				if err != nil {
					return flows.IssuedPair{}, err
				}
				return flows.IssuedPair{
					AccessToken:     pair.AccessToken,
					RefreshToken:    pair.RefreshToken,
					AccessExpiresAt: pair.AccessExpiresAt,
				}, nil
			},
			Store:     e.store,
			MetricInc: e.metrics.inc,
			Warn:      warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess: int(MetricLoginSuccess),
				LoginFailure: int(MetricLoginFailure),
			},
		},
		Validate: flows.ValidateDeps{
			Parse: e.codec.Validate,
		},
		Refresh: flows.RefreshDeps{
			Store:               e.store,
			Writer:              e.store,
			Taker:               taker,
			NotFound:            refresh.ErrNotFound,
			Validate:            e.codec.Validate,
			ParseIgnoringExpiry: e.codec.ParseIgnoringExpiry,
			Now:                 e.issuer.now,
			ExpiryGrace:         e.config.Refresh.ExpiryGrace,
			ResolveScope:        resolveScope,
			UnknownSubject:      ErrSubjectUnresolvable,
			IssueAccess: func(subject, scope string) (string, time.Time, error) {
				return e.issuer.IssueAccess(Principal{Subject: subject, Scope: scope})
			},
			IssueRefresh: e.issuer.IssueRefresh,
			Rotate:       e.config.Refresh.RotateRefreshToken,
			MetricInc:    e.metrics.inc,
			Warn:         warn,
			Metrics: flows.RefreshMetrics{
				RefreshSuccess:   int(MetricRefreshSuccess),
				RefreshFailure:   int(MetricRefreshFailure),
				RefreshGraceUsed: int(MetricRefreshGraceUsed),
				RefreshRotated:   int(MetricRefreshRotated),
			},
		},
		Logout: flows.LogoutDeps{
			Deleter:   deleter,
			MetricInc: e.metrics.inc,
			Metrics:   flows.LogoutMetrics{Logout: int(MetricLogout)},
		},
	}
}
