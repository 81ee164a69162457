// Package refresh implements the refresh-token store: durable records of
// issued refresh tokens, looked up by exact value.
//
// # Storage format
//
// Stores never keep the token in plaintext. Each record is keyed by the
// hex-encoded SHA-256 digest of the token value and carries a generated
// UUID, the creation time and the retention deadline.
//
// # Implementations
//
//   - [RedisStore]: one hash per digest, inserted atomically with a Lua
//     script and expired by Redis after the retention period.
//   - [SQLStore]: a refresh_tokens table on Postgres (pgx) or SQLite
//     (modernc), created by the goose migrations in internal/migrations.
//   - [MemoryStore]: a mutex-guarded map for tests and single-process hosts.
//
// # What this package must NOT do
//
//   - Parse or verify tokens (the jwt package owns that).
//   - Import the root deepblue package.
package refresh
