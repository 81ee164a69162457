// Package migrations embeds the goose schema migrations for the refresh
// token and member tables and applies them.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/Grara/deepblue-backend/internal/dbx"
)

//go:embed sql/*.sql
var Migrations embed.FS

// goose keeps its FS and dialect in package globals.
var gooseMu sync.Mutex

// Up applies all pending migrations to db.
func Up(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect(dialect.GooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
