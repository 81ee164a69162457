package deepblue

import (
	"errors"
	"strings"
	"time"
)

// Config holds engine options. Build copies it; later changes to the
// caller's value have no effect on a built Engine.
type Config struct {
	JWT     JWTConfig
	Refresh RefreshConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	// Leeway is the clock-skew tolerance. Zero enforces exp to the second.
	Leeway time.Duration
	// Now overrides the clock used for issuance and validation.
	Now func() time.Time
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the renewal policy.
type RefreshConfig struct {
	// RotateRefreshToken issues a new refresh token on every renewal and
	// removes the presented one. It requires a store implementing
	// RefreshConsumer. Off by default: the presented token stays valid.
	RotateRefreshToken bool
	// ExpiryGrace accepts an expired but validly signed refresh token for
	// this long past its exp. Zero rejects on expiry.
	ExpiryGrace time.Duration
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config with short-lived access tokens, week-long
// refresh tokens and HS256 signing. The signing key is left empty and must
// be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Refresh: RefreshConfig{
			RotateRefreshToken: false,
			ExpiryGrace:        0,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}

	method := strings.ToLower(strings.TrimSpace(c.JWT.SigningMethod))
	if method != "ed25519" && method != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if method == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
	}
	if method == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if method == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Refresh
	if c.Refresh.ExpiryGrace < 0 {
		return errors.New("Refresh ExpiryGrace must be >= 0")
	}
	if c.Refresh.ExpiryGrace > c.JWT.RefreshTTL {
		return errors.New("Refresh ExpiryGrace must not exceed RefreshTTL")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
