package flows

import (
	"context"
	"errors"
)

// LogoutMetrics carries metric IDs needed by the logout flow.
type LogoutMetrics struct {
	Logout int
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Deleter   RefreshDeleter
	MetricInc func(int)
	Metrics   LogoutMetrics
}

// ErrLogoutUnsupported is returned when the store cannot delete records.
var ErrLogoutUnsupported = errors.New("refresh store does not support delete")

// RunLogout removes the refresh record for token. Unknown or empty tokens
// are not an error.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = noopInc
	}
	if deps.Deleter == nil {
		return ErrLogoutUnsupported
	}
	if refreshToken == "" {
		return nil
	}
	if err := deps.Deleter.Delete(ctx, refreshToken); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.Logout)
	return nil
}
