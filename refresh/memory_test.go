package refresh

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_ExpiredRecordDropped(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := s.Save(ctx, "token"); err != nil {
		t.Fatalf("save: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := s.FindByValue(ctx, "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expired record not dropped, len=%d", s.Len())
	}
}

func TestMemoryStore_ExpiredValueCanBeSavedAgain(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := s.Save(ctx, "token"); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := s.Save(ctx, "token"); err != nil {
		t.Fatalf("save over expired record: %v", err)
	}
}

func TestMemoryStore_ZeroRetentionKeeps(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	if _, err := s.Save(ctx, "token"); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := s.FindByValue(ctx, "token")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !rec.ExpiresAt.IsZero() {
		t.Fatalf("expected no deadline, got %v", rec.ExpiresAt)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, "token"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryStore_ExpiredLookupKeepsConcurrentReplacement(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	var replace func()
	s.now = func() time.Time {
		if replace != nil {
			r := replace
			replace = nil
			r()
		}
		return now
	}

	if _, err := s.Save(ctx, "token"); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(2 * time.Minute)

	var fresh string
	replace = func() {
		id, err := s.Save(ctx, "token")
		if err != nil {
			t.Errorf("replacing save: %v", err)
		}
		fresh = id
	}
	if _, err := s.FindByValue(ctx, "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for the stale read, got %v", err)
	}

	rec, err := s.FindByValue(ctx, "token")
	if err != nil {
		t.Fatalf("replacement was deleted: %v", err)
	}
	if rec.ID != fresh {
		t.Fatalf("id = %q, want %q", rec.ID, fresh)
	}
}
