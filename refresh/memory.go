package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. Expired records are treated
// as absent and dropped lazily on lookup.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]Record
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore returns an empty store. A zero retention keeps records
// until deleted.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]Record),
		retention: retention,
		now:       time.Now,
	}
}

// Save stores value and returns the new record ID.
func (s *MemoryStore) Save(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", ErrEmptyValue
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		Digest:    Digest(value),
		CreatedAt: now,
	}
	if s.retention > 0 {
		rec.ExpiresAt = now.Add(s.retention)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.Digest]; ok && !existing.Expired(now) {
		return "", ErrDuplicate
	}
	s.records[rec.Digest] = rec
	return rec.ID, nil
}

// FindByValue returns the record for value or ErrNotFound.
func (s *MemoryStore) FindByValue(ctx context.Context, value string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := Digest(value)

	s.mu.RLock()
	rec, ok := s.records[digest]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Expired(s.now()) {
		s.mu.Lock()
		// A Save may have replaced the record since the read lock was dropped.
		if cur, ok := s.records[digest]; ok && cur.Expired(s.now()) {
			delete(s.records, digest)
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Take removes and returns the record for value in one step.
func (s *MemoryStore) Take(ctx context.Context, value string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := Digest(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[digest]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.records, digest)
	if rec.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Delete removes value. Deleting an absent value is not an error.
func (s *MemoryStore) Delete(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, Digest(value))
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
