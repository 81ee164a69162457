package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/internal/dbx"
)

// PasswordHasher is satisfied by *password.Delegating.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Repository stores members in SQL. It implements deepblue.CredentialVerifier
// and deepblue.ScopeResolver.
type Repository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	hasher  PasswordHasher
	logger  *slog.Logger
	now     func() time.Time
}

var (
	_ deepblue.CredentialVerifier = (*Repository)(nil)
	_ deepblue.ScopeResolver      = (*Repository)(nil)
)

// NewRepository returns a Repository over db. A nil logger means
// slog.Default.
func NewRepository(db dbx.DBTX, dialect dbx.Dialect, hasher PasswordHasher, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:      db,
		dialect: dialect,
		hasher:  hasher,
		logger:  logger,
		now:     time.Now,
	}
}

// Create validates c, hashes the password and inserts a member with
// RoleUser. A taken username yields ErrDuplicateUsername.
func (r *Repository) Create(ctx context.Context, c Credentials) (*Member, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	hash, err := r.hasher.Hash(c.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	m := &Member{
		ID:           uuid.NewString(),
		Username:     c.Username,
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    time.UnixMilli(r.now().UnixMilli()),
	}

	query := r.dialect.Rebind(`INSERT INTO members (id, username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, m.ID, m.Username, m.PasswordHash, m.Role, m.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, ErrDuplicateUsername
	}
	return m, nil
}

// FindByUsername returns the member named username or ErrNotFound.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*Member, error) {
	query := r.dialect.Rebind(`SELECT id, username, password_hash, role, created_at
		FROM members WHERE username = ?`)

	var (
		m       Member
		created int64
	)
	err := r.db.QueryRowContext(ctx, query, username).Scan(&m.ID, &m.Username, &m.PasswordHash, &m.Role, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	m.CreatedAt = time.UnixMilli(created)
	return &m, nil
}

// Exists reports whether username is taken.
func (r *Repository) Exists(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Seed creates the member unless the username already exists.
func (r *Repository) Seed(ctx context.Context, c Credentials) error {
	_, err := r.Create(ctx, c)
	if err != nil && !errors.Is(err, ErrDuplicateUsername) {
		return err
	}
	return nil
}

// SeedAll seeds every member inside one transaction on db. An invalid or
// failing entry rolls back the whole set.
func SeedAll(ctx context.Context, db *sql.DB, dialect dbx.Dialect, hasher PasswordHasher, logger *slog.Logger, seeds ...Credentials) error {
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := NewRepository(tx, dialect, hasher, logger)
		for _, c := range seeds {
			if err := repo.Seed(ctx, c); err != nil {
				return fmt.Errorf("seed %q: %w", c.Username, err)
			}
		}
		return nil
	})
}

// VerifyCredentials checks identifier and secret. Unknown members and
// wrong passwords both yield deepblue.ErrInvalidCredentials. A hash in an
// outdated encoding is replaced after a successful check.
func (r *Repository) VerifyCredentials(ctx context.Context, identifier, secret string) (deepblue.Principal, error) {
	m, err := r.FindByUsername(ctx, identifier)
	if errors.Is(err, ErrNotFound) {
		return deepblue.Principal{}, deepblue.ErrInvalidCredentials
	}
	if err != nil {
		return deepblue.Principal{}, err
	}

	ok, err := r.hasher.Verify(secret, m.PasswordHash)
	if err != nil {
		return deepblue.Principal{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return deepblue.Principal{}, deepblue.ErrInvalidCredentials
	}

	if upgrade, err := r.hasher.NeedsUpgrade(m.PasswordHash); err == nil && upgrade {
		if err := r.rehash(ctx, m.ID, secret); err != nil {
			r.logger.Warn("members: rehash failed", "member_id", m.ID, "error", err)
		}
	}

	return deepblue.Principal{Subject: m.Username, Scope: m.Scope()}, nil
}

// ResolveScope returns the current scope for subject, the member's
// username. A missing member wraps both ErrNotFound and
// deepblue.ErrSubjectUnresolvable.
func (r *Repository) ResolveScope(ctx context.Context, subject string) (string, error) {
	m, err := r.FindByUsername(ctx, strings.TrimSpace(subject))
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%w: %w", deepblue.ErrSubjectUnresolvable, err)
	}
	if err != nil {
		return "", err
	}
	return m.Scope(), nil
}

// SetRole changes a member's role.
func (r *Repository) SetRole(ctx context.Context, username, role string) error {
	query := r.dialect.Rebind(`UPDATE members SET role = ? WHERE username = ?`)
	res, err := r.db.ExecContext(ctx, query, role, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) rehash(ctx context.Context, id, secret string) error {
	hash, err := r.hasher.Hash(secret)
	if err != nil {
		return err
	}
	query := r.dialect.Rebind(`UPDATE members SET password_hash = ? WHERE id = ?`)
	_, err = r.db.ExecContext(ctx, query, hash, id)
	return err
}
