package members

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrNotFound          = errors.New("member not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

// RoleUser is the role given to members created without one.
const RoleUser = "USER"

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Member is one row of the members table.
type Member struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Scope renders the member's role as the scope claim carried by access
// tokens, e.g. "ROLE_USER".
func (m *Member) Scope() string {
	return "ROLE_" + m.Role
}

// Credentials is a username and plaintext password pair taken from a
// sign-up request.
type Credentials struct {
	Username string
	Password string
}

// Validate applies the username and password rules shared by sign-up and
// login.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username,
			validation.Required.Error("username is required"),
			validation.Length(1, 64),
			validation.Match(usernamePattern).Error("username must contain only letters and digits"),
		),
		validation.Field(&c.Password,
			validation.Required.Error("password is required"),
			validation.Length(1, 1024),
		),
	)
}
