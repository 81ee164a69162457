package password

import "errors"

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrInvalidHash is returned for an encoded hash that cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash format")
	// ErrUnknownHasher is returned when a hash prefix names no registered hasher.
	ErrUnknownHasher = errors.New("unknown password hasher")
)

// Hasher hashes and verifies passwords in one encoding.
type Hasher interface {
	ID() string
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

var (
	_ Hasher = (*Argon2)(nil)
	_ Hasher = (*Bcrypt)(nil)
)
