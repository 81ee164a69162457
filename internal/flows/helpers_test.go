package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Grara/deepblue-backend/jwt"
	"github.com/Grara/deepblue-backend/refresh"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCodec(t *testing.T, clock *testClock) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("flows-test-secret-0123456789abcdef"),
		Issuer:        "deepblue",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

type counter struct {
	mu sync.Mutex
	m  map[int]int
}

func newCounter() *counter { return &counter{m: map[int]int{}} }

func (c *counter) inc(id int) {
	c.mu.Lock()
	c.m[id]++
	c.mu.Unlock()
}

func (c *counter) get(id int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[id]
}

type failingStore struct {
	err error
}

func (s failingStore) FindByValue(context.Context, string) (*refresh.Record, error) {
	return nil, s.err
}

func (s failingStore) Save(context.Context, string) (string, error) {
	return "", s.err
}

func (s failingStore) Delete(context.Context, string) error {
	return s.err
}

var errBackend = errors.New("backend down")
