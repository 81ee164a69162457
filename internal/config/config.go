// Package config loads the server configuration from DEEPBLUE_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/internal/dbx"
)

// Refresh store backends.
const (
	StoreSQL       = "sql"
	StoreRedis     = "redis"
	StoreMiniredis = "miniredis"
)

// Config is the server configuration.
type Config struct {
	HTTPAddr        string        `env:"DEEPBLUE_HTTP_ADDR"        envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"DEEPBLUE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"DEEPBLUE_LOG_LEVEL"        envDefault:"info"`

	DBDialect string `env:"DEEPBLUE_DB_DIALECT" envDefault:"sqlite"`
	DBDSN     string `env:"DEEPBLUE_DB_DSN"     envDefault:"file:deepblue.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`

	RefreshStore  string        `env:"DEEPBLUE_REFRESH_STORE"  envDefault:"sql"`
	RefreshRotate bool          `env:"DEEPBLUE_REFRESH_ROTATE" envDefault:"false"`
	RefreshGrace  time.Duration `env:"DEEPBLUE_REFRESH_GRACE"  envDefault:"0s"`
	RedisAddr     string        `env:"DEEPBLUE_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string        `env:"DEEPBLUE_REDIS_PASSWORD"`
	RedisDB       int           `env:"DEEPBLUE_REDIS_DB"       envDefault:"0"`
	RedisPrefix   string        `env:"DEEPBLUE_REDIS_PREFIX"   envDefault:"rt"`

	JWTSecret  string        `env:"DEEPBLUE_JWT_SECRET,required"`
	JWTIssuer  string        `env:"DEEPBLUE_JWT_ISSUER"      envDefault:"deepblue"`
	JWTKeyID   string        `env:"DEEPBLUE_JWT_KEY_ID"`
	AccessTTL  time.Duration `env:"DEEPBLUE_JWT_ACCESS_TTL"  envDefault:"30m"`
	RefreshTTL time.Duration `env:"DEEPBLUE_JWT_REFRESH_TTL" envDefault:"168h"`
	JWTLeeway  time.Duration `env:"DEEPBLUE_JWT_LEEWAY"      envDefault:"0s"`

	SeedEnabled  bool   `env:"DEEPBLUE_SEED_ENABLED"  envDefault:"true"`
	SeedUsername string `env:"DEEPBLUE_SEED_USERNAME" envDefault:"user"`
	SeedPassword string `env:"DEEPBLUE_SEED_PASSWORD" envDefault:"1234"`

	MetricsEnabled bool `env:"DEEPBLUE_METRICS_ENABLED" envDefault:"true"`
	OTelEnabled    bool `env:"DEEPBLUE_OTEL_ENABLED"    envDefault:"false"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values env parsing cannot express. The engine
// re-validates its own section at Build.
func (c Config) Validate() error {
	var redisRules, seedRules []validation.Rule
	if c.RefreshStore == StoreRedis {
		redisRules = append(redisRules, validation.Required)
	}
	if c.SeedEnabled {
		seedRules = append(seedRules, validation.Required)
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.DBDialect, validation.Required, validation.By(func(v interface{}) error {
			_, err := dbx.ParseDialect(v.(string))
			return err
		})),
		validation.Field(&c.DBDSN, validation.Required),
		validation.Field(&c.RefreshStore, validation.Required, validation.In(StoreSQL, StoreRedis, StoreMiniredis)),
		validation.Field(&c.RedisAddr, redisRules...),
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.SeedUsername, seedRules...),
		validation.Field(&c.SeedPassword, seedRules...),
	)
}

// Dialect returns the parsed database dialect.
func (c Config) Dialect() dbx.Dialect {
	d, err := dbx.ParseDialect(c.DBDialect)
	if err != nil {
		return dbx.SQLite
	}
	return d
}

// SlogLevel maps LogLevel to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RefreshRetention is how long a store keeps a refresh record: the token's
// lifetime plus the renewal grace window.
func (c Config) RefreshRetention() time.Duration {
	return c.RefreshTTL + c.RefreshGrace
}

// Engine builds the engine configuration.
func (c Config) Engine() deepblue.Config {
	cfg := deepblue.DefaultConfig()
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.KeyID = c.JWTKeyID
	cfg.JWT.Leeway = c.JWTLeeway
	cfg.Refresh.RotateRefreshToken = c.RefreshRotate
	cfg.Refresh.ExpiryGrace = c.RefreshGrace
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	return cfg
}
