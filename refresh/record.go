package refresh

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by FindByValue when no record matches.
	ErrNotFound = errors.New("refresh token not found")
	// ErrDuplicate is returned by Save when the value is already stored.
	ErrDuplicate = errors.New("refresh token already stored")
	// ErrEmptyValue is returned for an empty token value.
	ErrEmptyValue = errors.New("refresh token value is empty")
)

// Record is the persisted form of an issued refresh token. Records are
// written once and never mutated.
type Record struct {
	ID        string
	Digest    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Digest returns the storage key for a token value.
func Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Expired reports whether the record's retention deadline has passed.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
