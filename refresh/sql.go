package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Grara/deepblue-backend/internal/dbx"
)

// SQLStore persists refresh records in the refresh_tokens table. The table
// is created by internal/migrations.
type SQLStore struct {
	db        dbx.DBTX
	dialect   dbx.Dialect
	retention time.Duration
	now       func() time.Time
}

// NewSQLStore returns a store bound to db. db may be a *sql.DB or *sql.Tx.
func NewSQLStore(db dbx.DBTX, dialect dbx.Dialect, retention time.Duration) *SQLStore {
	return &SQLStore{
		db:        db,
		dialect:   dialect,
		retention: retention,
		now:       time.Now,
	}
}

// Save inserts a record for value. A live record with the same digest yields
// ErrDuplicate; an expired one that has not been purged yet is replaced.
func (s *SQLStore) Save(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", ErrEmptyValue
	}

	now := s.now()
	id := uuid.NewString()
	var expires int64
	if s.retention > 0 {
		expires = now.Add(s.retention).UnixMilli()
	}

	query := s.dialect.Rebind(`
		INSERT INTO refresh_tokens (id, digest, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (digest) DO UPDATE SET
			id = excluded.id,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		WHERE refresh_tokens.expires_at > 0 AND refresh_tokens.expires_at <= ?
	`)
	res, err := s.db.ExecContext(ctx, query, id, Digest(value), now.UnixMilli(), expires, now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("insert refresh token: %w", err)
	}
	if n == 0 {
		return "", ErrDuplicate
	}
	return id, nil
}

// FindByValue returns the record for value or ErrNotFound. Rows past their
// retention deadline are treated as absent.
func (s *SQLStore) FindByValue(ctx context.Context, value string) (*Record, error) {
	query := s.dialect.Rebind(`
		SELECT id, digest, created_at, expires_at
		FROM refresh_tokens
		WHERE digest = ?
	`)

	return s.scanOne(s.db.QueryRowContext(ctx, query, Digest(value)))
}

func (s *SQLStore) scanOne(row *sql.Row) (*Record, error) {
	var (
		rec              Record
		created, expires int64
	)
	if err := row.Scan(&rec.ID, &rec.Digest, &created, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.CreatedAt = time.UnixMilli(created)
	if expires > 0 {
		rec.ExpiresAt = time.UnixMilli(expires)
	}
	if rec.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Take deletes the record for value and returns it. RETURNING makes the
// read and the delete one statement on both dialects.
func (s *SQLStore) Take(ctx context.Context, value string) (*Record, error) {
	query := s.dialect.Rebind(`
		DELETE FROM refresh_tokens
		WHERE digest = ?
		RETURNING id, digest, created_at, expires_at
	`)
	return s.scanOne(s.db.QueryRowContext(ctx, query, Digest(value)))
}

// Delete removes the record for value if present.
func (s *SQLStore) Delete(ctx context.Context, value string) error {
	query := s.dialect.Rebind(`DELETE FROM refresh_tokens WHERE digest = ?`)
	if _, err := s.db.ExecContext(ctx, query, Digest(value)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows whose retention deadline has passed and reports
// how many were removed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	query := s.dialect.Rebind(`DELETE FROM refresh_tokens WHERE expires_at > 0 AND expires_at <= ?`)
	res, err := s.db.ExecContext(ctx, query, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
