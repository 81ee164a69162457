package members

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	deepblue "github.com/Grara/deepblue-backend"
	"github.com/Grara/deepblue-backend/internal/dbx"
	"github.com/Grara/deepblue-backend/internal/migrations"
	"github.com/Grara/deepblue-backend/password"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db, dbx.SQLite))
	return db
}

func newTestHashers(t *testing.T) (*password.Argon2, *password.Bcrypt) {
	t.Helper()
	a, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	b, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	return a, b
}

func newTestRepository(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	a, b := newTestHashers(t)
	hasher, err := password.NewDelegating(a, b)
	require.NoError(t, err)
	db := newTestDB(t)
	return NewRepository(db, dbx.SQLite, hasher, nil), db
}

func TestCreateAndVerify(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	m, err := repo.Create(ctx, Credentials{Username: "user", Password: "1234"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, RoleUser, m.Role)
	assert.NotContains(t, m.PasswordHash, "1234")

	p, err := repo.VerifyCredentials(ctx, "user", "1234")
	require.NoError(t, err)
	assert.Equal(t, deepblue.Principal{Subject: "user", Scope: "ROLE_USER"}, p)
}

func TestVerifyCredentialsRejects(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, Credentials{Username: "user", Password: "1234"}))

	_, err := repo.VerifyCredentials(ctx, "user", "wrong")
	assert.ErrorIs(t, err, deepblue.ErrInvalidCredentials)

	_, err = repo.VerifyCredentials(ctx, "nobody", "1234")
	assert.ErrorIs(t, err, deepblue.ErrInvalidCredentials)
}

func TestCreateDuplicate(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, Credentials{Username: "user", Password: "1234"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, Credentials{Username: "user", Password: "other"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	require.NoError(t, repo.Seed(ctx, Credentials{Username: "user", Password: "1234"}))
}

func TestCreateValidation(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	cases := map[string]Credentials{
		"empty username": {Username: "", Password: "1234"},
		"empty password": {Username: "user", Password: ""},
		"non-alnum":      {Username: "user name", Password: "1234"},
		"hangul":         {Username: "회원", Password: "1234"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Create(ctx, c)
			assert.Error(t, err)
		})
	}

	exists, err := repo.Exists(ctx, "user")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExists(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "user")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Seed(ctx, Credentials{Username: "user", Password: "1234"}))
	exists, err = repo.Exists(ctx, "user")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResolveScopeFollowsRole(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, Credentials{Username: "user", Password: "1234"}))

	scope, err := repo.ResolveScope(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, "ROLE_USER", scope)

	require.NoError(t, repo.SetRole(ctx, "user", "ADMIN"))
	scope, err = repo.ResolveScope(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, "ROLE_ADMIN", scope)

	_, err = repo.ResolveScope(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, deepblue.ErrSubjectUnresolvable)
	assert.ErrorIs(t, repo.SetRole(ctx, "ghost", "ADMIN"), ErrNotFound)
}

func TestSeedAllIsAtomic(t *testing.T) {
	a, b := newTestHashers(t)
	hasher, err := password.NewDelegating(a, b)
	require.NoError(t, err)
	db := newTestDB(t)
	repo := NewRepository(db, dbx.SQLite, hasher, nil)
	ctx := context.Background()

	err = SeedAll(ctx, db, dbx.SQLite, hasher, nil,
		Credentials{Username: "user", Password: "1234"},
		Credentials{Username: "not valid!", Password: "1234"},
	)
	require.Error(t, err)
	exists, err := repo.Exists(ctx, "user")
	require.NoError(t, err)
	assert.False(t, exists, "failed seed must roll back earlier entries")

	seeds := []Credentials{{Username: "user", Password: "1234"}, {Username: "admin", Password: "5678"}}
	require.NoError(t, SeedAll(ctx, db, dbx.SQLite, hasher, nil, seeds...))
	require.NoError(t, SeedAll(ctx, db, dbx.SQLite, hasher, nil, seeds...), "reseeding is a no-op")
	for _, c := range seeds {
		_, err := repo.VerifyCredentials(ctx, c.Username, c.Password)
		require.NoError(t, err)
	}
}

func TestResolveScopeBackendFailureIsNotUnresolvable(t *testing.T) {
	repo, db := newTestRepository(t)
	require.NoError(t, db.Close())

	_, err := repo.ResolveScope(context.Background(), "user")
	require.Error(t, err)
	assert.NotErrorIs(t, err, deepblue.ErrSubjectUnresolvable)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestVerifyCredentialsUpgradesLegacyHash(t *testing.T) {
	a, b := newTestHashers(t)
	legacyOnly, err := password.NewDelegating(b)
	require.NoError(t, err)
	current, err := password.NewDelegating(a, b)
	require.NoError(t, err)

	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewRepository(db, dbx.SQLite, legacyOnly, nil).Seed(ctx, Credentials{Username: "user", Password: "1234"}))

	repo := NewRepository(db, dbx.SQLite, current, nil)
	_, err = repo.VerifyCredentials(ctx, "user", "1234")
	require.NoError(t, err)

	m, err := repo.FindByUsername(ctx, "user")
	require.NoError(t, err)
	assert.Contains(t, m.PasswordHash, "{argon2}")

	_, err = repo.VerifyCredentials(ctx, "user", "1234")
	require.NoError(t, err)
}
