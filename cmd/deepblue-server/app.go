package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/internal/config"
	"github.com/Grara/deepblue-backend/internal/dbx"
	"github.com/Grara/deepblue-backend/internal/httpapi"
	"github.com/Grara/deepblue-backend/internal/members"
	"github.com/Grara/deepblue-backend/internal/migrations"
	"github.com/Grara/deepblue-backend/metrics/export/prometheus"
	"github.com/Grara/deepblue-backend/password"
	"github.com/Grara/deepblue-backend/refresh"
)

const purgeInterval = time.Hour

func run(ctx context.Context, cfg config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(ctx, db, cfg.Dialect()); err != nil {
		return err
	}

	hasher, err := password.NewDefault()
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	directory := members.NewRepository(db, cfg.Dialect(), hasher, logger)
	if cfg.SeedEnabled {
		seed := members.Credentials{Username: cfg.SeedUsername, Password: cfg.SeedPassword}
		if err := members.SeedAll(ctx, db, cfg.Dialect(), hasher, logger, seed); err != nil {
			return fmt.Errorf("seed member: %w", err)
		}
	}

	store, closeStore, err := openRefreshStore(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := deepblue.New().
		WithConfig(cfg.Engine()).
		WithRefreshStore(store).
		WithCredentialVerifier(directory).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}

	if cfg.OTelEnabled {
		shutdown, err := startTelemetry(engine, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewHandler(httpapi.Options{
			Engine:  engine,
			Members: directory,
			Metrics: prometheus.NewExporter(engine).Handler(),
			Logger:  logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("deepblue: listening", "addr", cfg.HTTPAddr, "refresh_store", cfg.RefreshStore, "dialect", string(cfg.Dialect()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("deepblue: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dialect := cfg.Dialect()
	db, err := sql.Open(dialect.DriverName(), cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if dialect == dbx.SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func openRefreshStore(ctx context.Context, cfg config.Config, db *sql.DB, logger *slog.Logger) (deepblue.RefreshStore, func(), error) {
	retention := cfg.RefreshRetention()

	switch cfg.RefreshStore {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		store := refresh.NewRedisStore(rdb, retention, refresh.WithKeyPrefix(cfg.RedisPrefix))
		return store, func() { _ = rdb.Close() }, nil

	case config.StoreMiniredis:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("miniredis: %w", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger.Warn("deepblue: using embedded miniredis; refresh tokens are lost on restart")
		store := refresh.NewRedisStore(rdb, retention, refresh.WithKeyPrefix(cfg.RedisPrefix))
		return store, func() {
			_ = rdb.Close()
			mr.Close()
		}, nil

	default:
		store := refresh.NewSQLStore(db, cfg.Dialect(), retention)
		purgeCtx, cancel := context.WithCancel(ctx)
		go purgeLoop(purgeCtx, store, logger)
		return store, cancel, nil
	}
}

func purgeLoop(ctx context.Context, store *refresh.SQLStore, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("deepblue: purge expired refresh tokens", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("deepblue: purged expired refresh tokens", "count", n)
			}
		}
	}
}
