package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Grara/deepblue-backend/refresh"
)

func TestRunLogout(t *testing.T) {
	store := refresh.NewMemoryStore(time.Hour)
	ctx := context.Background()
	if _, err := store.Save(ctx, "rt"); err != nil {
		t.Fatalf("save: %v", err)
	}

	metrics := newCounter()
	deps := LogoutDeps{Deleter: store, MetricInc: metrics.inc, Metrics: LogoutMetrics{Logout: 7}}

	if err := RunLogout(ctx, "rt", deps); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := store.FindByValue(ctx, "rt"); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
	if err := RunLogout(ctx, "rt", deps); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := RunLogout(ctx, "", deps); err != nil {
		t.Fatalf("empty logout: %v", err)
	}
	if metrics.get(7) != 2 {
		t.Fatalf("logout metric = %d", metrics.get(7))
	}
}

func TestRunLogout_Errors(t *testing.T) {
	if err := RunLogout(context.Background(), "rt", LogoutDeps{}); !errors.Is(err, ErrLogoutUnsupported) {
		t.Fatalf("expected ErrLogoutUnsupported, got %v", err)
	}
	err := RunLogout(context.Background(), "rt", LogoutDeps{Deleter: failingStore{err: errBackend}})
	if !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
