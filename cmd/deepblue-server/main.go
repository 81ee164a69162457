// Command deepblue-server serves the login, token renewal and member API.
//
// Configuration is read from DEEPBLUE_* environment variables; only
// DEEPBLUE_JWT_SECRET is required:
//
//	DEEPBLUE_JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/deepblue-server
//
//	curl -s -X POST localhost:8080/login -d '{"id":"user","password":"1234"}'
//	curl -s localhost:8080/members/me -H "Authorization: Bearer <ACCESS_TOKEN>"
//	curl -s -X POST localhost:8080/token/refresh -d '{"refreshToken":"<REFRESH_TOKEN>"}'
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Grara/deepblue-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
