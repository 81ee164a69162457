package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis client.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultKeyPrefix = "rt"

// insertIfAbsent writes the record hash only when the key is free.
// KEYS[1] = record key
// ARGV = id, created_at_ms, expires_at_ms, retention_ms
const insertIfAbsentScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "created", ARGV[2], "expires", ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl and ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

var insertIfAbsentLua = redis.NewScript(insertIfAbsentScript)

// RedisStore persists refresh records as Redis hashes keyed by digest.
// Retention is enforced by Redis key expiry.
type RedisStore struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key namespace. Default "rt".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore returns a store on rdb. Records expire after retention; zero
// keeps them until deleted.
func NewRedisStore(rdb redis.UniversalClient, retention time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:       rdb,
		prefix:    defaultKeyPrefix,
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(digest string) string {
	return s.prefix + ":" + digest
}

// Save stores value atomically. An existing live record yields ErrDuplicate.
func (s *RedisStore) Save(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", ErrEmptyValue
	}

	now := s.now()
	id := uuid.NewString()
	var expiresMs int64
	if s.retention > 0 {
		expiresMs = now.Add(s.retention).UnixMilli()
	}

	res, err := insertIfAbsentLua.Run(
		ctx,
		s.rdb,
		[]string{s.key(Digest(value))},
		id,
		now.UnixMilli(),
		expiresMs,
		s.retention.Milliseconds(),
	).Int64()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return "", ErrDuplicate
	}
	return id, nil
}

// FindByValue loads the record for value.
func (s *RedisStore) FindByValue(ctx context.Context, value string) (*Record, error) {
	digest := Digest(value)
	fields, err := s.rdb.HGetAll(ctx, s.key(digest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeRecord(digest, fields)
}

// Take reads and deletes the record inside one MULTI/EXEC, so concurrent
// callers for the same value see it at most once.
func (s *RedisStore) Take(ctx context.Context, value string) (*Record, error) {
	digest := Digest(value)
	key := s.key(digest)

	var get *redis.MapStringStringCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGetAll(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decodeRecord(digest, get.Val())
}

func decodeRecord(digest string, fields map[string]string) (*Record, error) {
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec := &Record{ID: fields["id"], Digest: digest}
	if ms, err := strconv.ParseInt(fields["created"], 10, 64); err == nil {
		rec.CreatedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["expires"], 10, 64); err == nil && ms > 0 {
		rec.ExpiresAt = time.UnixMilli(ms)
	}
	return rec, nil
}

// Delete removes value. Missing keys are ignored.
func (s *RedisStore) Delete(ctx context.Context, value string) error {
	if err := s.rdb.Del(ctx, s.key(Digest(value))).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
