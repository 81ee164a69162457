package flows

import (
	"context"
	"time"

	"github.com/Grara/deepblue-backend/refresh"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Login    LoginDeps
	Validate ValidateDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
}

// RefreshLookup is the read side of the refresh store.
type RefreshLookup interface {
	FindByValue(ctx context.Context, value string) (*refresh.Record, error)
}

// RefreshWriter is the write side of the refresh store.
type RefreshWriter interface {
	Save(ctx context.Context, value string) (string, error)
}

// RefreshDeleter is implemented by stores that can remove a record.
type RefreshDeleter interface {
	Delete(ctx context.Context, value string) error
}

// RefreshTaker atomically removes and returns a record. Of several
// concurrent callers for one value, exactly one receives it.
type RefreshTaker interface {
	Take(ctx context.Context, value string) (*refresh.Record, error)
}

// IssuedPair is the flow-local view of a signed token pair.
type IssuedPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

func noopInc(int) {}

func noopWarn(string, ...any) {}
