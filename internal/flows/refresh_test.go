package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Grara/deepblue-backend/jwt"
	"github.com/Grara/deepblue-backend/refresh"
)

type refreshFixture struct {
	clock   *testClock
	codec   *jwt.Manager
	store   *refresh.MemoryStore
	metrics *counter
	deps    RefreshDeps
}

const (
	mRefreshSuccess = iota + 1
	mRefreshFailure
	mRefreshGrace
	mRefreshRotated
)

var errNoMember = errors.New("no such member")

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()
	f := &refreshFixture{
		clock:   newTestClock(),
		store:   refresh.NewMemoryStore(0),
		metrics: newCounter(),
	}
	f.codec = newTestCodec(t, f.clock)
	f.deps = RefreshDeps{
		Store:               f.store,
		Writer:              f.store,
		Taker:               f.store,
		NotFound:            refresh.ErrNotFound,
		Validate:            f.codec.Validate,
		ParseIgnoringExpiry: f.codec.ParseIgnoringExpiry,
		Now:                 f.clock.Now,
		ResolveScope: func(_ context.Context, subject string) (string, error) {
			if subject == "gone" {
				return "", fmt.Errorf("%w: %s", errNoMember, subject)
			}
			return "ROLE_USER", nil
		},
		UnknownSubject: errNoMember,
		IssueAccess: func(subject, scope string) (string, time.Time, error) {
			tok, err := f.codec.Issue(subject, scope, jwt.UseAccess, time.Minute)
			return tok, f.clock.Now().Add(time.Minute), err
		},
		IssueRefresh: func(subject string) (string, error) {
			return f.codec.Issue(subject, "", jwt.UseRefresh, time.Hour)
		},
		MetricInc: f.metrics.inc,
		Metrics: RefreshMetrics{
			RefreshSuccess:   mRefreshSuccess,
			RefreshFailure:   mRefreshFailure,
			RefreshGraceUsed: mRefreshGrace,
			RefreshRotated:   mRefreshRotated,
		},
	}
	return f
}

func (f *refreshFixture) storedRefresh(t *testing.T, subject string) string {
	t.Helper()
	tok, err := f.codec.Issue(subject, "", jwt.UseRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.store.Save(context.Background(), tok); err != nil {
		t.Fatalf("save: %v", err)
	}
	return tok
}

func TestRunRefresh_ReissuesAccessForSameSubject(t *testing.T) {
	f := newRefreshFixture(t)
	tok := f.storedRefresh(t, "user")

	res := RunRefresh(context.Background(), tok, f.deps)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("refresh failed: %v (%v)", res.Failure, res.Err)
	}
	if res.State != RefreshReissued {
		t.Fatalf("state = %v", res.State)
	}
	if res.RefreshToken != tok || res.Rotated {
		t.Fatal("refresh token must be reused when rotation is off")
	}

	claims, err := f.codec.Validate(res.AccessToken)
	if err != nil {
		t.Fatalf("new access token invalid: %v", err)
	}
	if claims.Subject != "user" || claims.Scope != "ROLE_USER" || claims.Use != jwt.UseAccess {
		t.Fatalf("unexpected claims %+v", claims)
	}

	again := RunRefresh(context.Background(), tok, f.deps)
	if again.Failure != RefreshFailureNone {
		t.Fatalf("reuse of refresh token failed: %v", again.Err)
	}
	if f.metrics.get(mRefreshSuccess) != 2 {
		t.Fatalf("success metric = %d", f.metrics.get(mRefreshSuccess))
	}
}

func TestRunRefresh_UnknownTokenRejectedBeforeSignature(t *testing.T) {
	f := newRefreshFixture(t)
	called := false
	f.deps.Validate = func(s string) (*jwt.Claims, error) {
		called = true
		return f.codec.Validate(s)
	}

	signed, err := f.codec.Issue("user", "", jwt.UseRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, tok := range []string{"random-string", signed} {
		res := RunRefresh(context.Background(), tok, f.deps)
		if res.Failure != RefreshFailureUnknown {
			t.Fatalf("failure = %v, want unknown", res.Failure)
		}
		if res.State != RefreshPresented {
			t.Fatalf("state = %v", res.State)
		}
		if res.AccessToken != "" {
			t.Fatal("access token produced for unknown refresh token")
		}
	}
	if called {
		t.Fatal("codec consulted before store check")
	}
}

func TestRunRefresh_Gates(t *testing.T) {
	f := newRefreshFixture(t)

	accessTok, err := f.codec.Issue("user", "ROLE_USER", jwt.UseAccess, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.store.Save(context.Background(), accessTok); err != nil {
		t.Fatalf("save: %v", err)
	}
	noSubject := f.storedRefresh(t, "")
	gone := f.storedRefresh(t, "gone")
	if _, err := f.store.Save(context.Background(), "stored-garbage"); err != nil {
		t.Fatalf("save: %v", err)
	}

	other, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("another-secret-0123456789abcdefgh"),
		Issuer:        "deepblue",
		Now:           f.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	forged, err := other.Issue("user", "", jwt.UseRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.store.Save(context.Background(), forged); err != nil {
		t.Fatalf("save: %v", err)
	}

	cases := []struct {
		name  string
		token string
		want  RefreshFailureKind
		state RefreshState
	}{
		{"empty", "", RefreshFailureEmpty, RefreshPresented},
		{"stored garbage", "stored-garbage", RefreshFailureMalformed, RefreshStoreChecked},
		{"forged signature", forged, RefreshFailureSignature, RefreshStoreChecked},
		{"access token presented", accessTok, RefreshFailureWrongUse, RefreshStoreChecked},
		{"missing subject", noSubject, RefreshFailureMissingSubject, RefreshStoreChecked},
		{"unresolvable subject", gone, RefreshFailureUnresolvable, RefreshSignatureChecked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunRefresh(context.Background(), tc.token, f.deps)
			if res.Failure != tc.want {
				t.Fatalf("failure = %v, want %v (err=%v)", res.Failure, tc.want, res.Err)
			}
			if res.State != tc.state {
				t.Fatalf("state = %v, want %v", res.State, tc.state)
			}
			if res.AccessToken != "" {
				t.Fatal("access token produced on failure")
			}
		})
	}
}

func TestRunRefresh_StoreFailure(t *testing.T) {
	f := newRefreshFixture(t)
	f.deps.Store = failingStore{err: errBackend}

	res := RunRefresh(context.Background(), "anything", f.deps)
	if res.Failure != RefreshFailureStore || !errors.Is(res.Err, errBackend) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunRefresh_ExpiredRejectedByDefault(t *testing.T) {
	f := newRefreshFixture(t)
	tok := f.storedRefresh(t, "user")
	f.clock.Advance(time.Hour)

	res := RunRefresh(context.Background(), tok, f.deps)
	if res.Failure != RefreshFailureExpired || !errors.Is(res.Err, jwt.ErrExpired) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunRefresh_ExpiryGraceWindow(t *testing.T) {
	f := newRefreshFixture(t)
	f.deps.ExpiryGrace = 10 * time.Minute
	tok := f.storedRefresh(t, "user")

	f.clock.Advance(time.Hour + 5*time.Minute)
	res := RunRefresh(context.Background(), tok, f.deps)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("refresh inside grace failed: %v (%v)", res.Failure, res.Err)
	}
	if f.metrics.get(mRefreshGrace) != 1 {
		t.Fatalf("grace metric = %d", f.metrics.get(mRefreshGrace))
	}

	f.clock.Advance(5 * time.Minute)
	res = RunRefresh(context.Background(), tok, f.deps)
	if res.Failure != RefreshFailureExpired {
		t.Fatalf("refresh at grace end: %v", res.Failure)
	}
}

func TestRunRefresh_RotationReplacesStoredToken(t *testing.T) {
	f := newRefreshFixture(t)
	f.deps.Rotate = true
	tok := f.storedRefresh(t, "user")

	res := RunRefresh(context.Background(), tok, f.deps)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("refresh failed: %v", res.Err)
	}
	if !res.Rotated || res.RefreshToken == tok {
		t.Fatal("expected a new refresh token")
	}
	if _, err := f.store.FindByValue(context.Background(), res.RefreshToken); err != nil {
		t.Fatalf("rotated token not stored: %v", err)
	}

	old := RunRefresh(context.Background(), tok, f.deps)
	if old.Failure != RefreshFailureUnknown {
		t.Fatalf("old token failure = %v, want unknown", old.Failure)
	}
	if f.metrics.get(mRefreshRotated) != 1 {
		t.Fatalf("rotated metric = %d", f.metrics.get(mRefreshRotated))
	}
}

func TestRunRefresh_RotationSingleWinner(t *testing.T) {
	f := newRefreshFixture(t)
	f.deps.Rotate = true
	tok := f.storedRefresh(t, "user")

	const n = 16
	var wg sync.WaitGroup
	results := make(chan RefreshResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- RunRefresh(context.Background(), tok, f.deps)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for res := range results {
		switch res.Failure {
		case RefreshFailureNone:
			wins++
		case RefreshFailureUnknown:
		default:
			t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestRunRefresh_NoResolverLeavesScopeEmpty(t *testing.T) {
	f := newRefreshFixture(t)
	f.deps.ResolveScope = nil
	tok := f.storedRefresh(t, "user")

	res := RunRefresh(context.Background(), tok, f.deps)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("refresh failed: %v", res.Err)
	}
	claims, err := f.codec.Validate(res.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Scope != "" {
		t.Fatalf("scope = %q, want empty", claims.Scope)
	}
}

// flakyWriter fails the next `fail` saves, then delegates.
type flakyWriter struct {
	mu    sync.Mutex
	inner RefreshWriter
	fail  int
}

func (w *flakyWriter) Save(ctx context.Context, value string) (string, error) {
	w.mu.Lock()
	if w.fail > 0 {
		w.fail--
		w.mu.Unlock()
		return "", errBackend
	}
	w.mu.Unlock()
	return w.inner.Save(ctx, value)
}

func TestRunRefresh_ResolverOutageIsStoreFailure(t *testing.T) {
	for _, rotate := range []bool{false, true} {
		t.Run(fmt.Sprintf("rotate=%v", rotate), func(t *testing.T) {
			f := newRefreshFixture(t)
			f.deps.Rotate = rotate
			tok := f.storedRefresh(t, "user")

			resolve := f.deps.ResolveScope
			f.deps.ResolveScope = func(context.Context, string) (string, error) {
				return "", errBackend
			}
			res := RunRefresh(context.Background(), tok, f.deps)
			if res.Failure != RefreshFailureStore || !errors.Is(res.Err, errBackend) {
				t.Fatalf("during outage: failure=%v err=%v", res.Failure, res.Err)
			}

			f.deps.ResolveScope = resolve
			res = RunRefresh(context.Background(), tok, f.deps)
			if res.Failure != RefreshFailureNone {
				t.Fatalf("after recovery: failure=%v err=%v", res.Failure, res.Err)
			}
			if res.Rotated != rotate {
				t.Fatalf("rotated = %v, want %v", res.Rotated, rotate)
			}
		})
	}
}

func TestRunRefresh_RotationRestoresTokenOnTransientFailure(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *refreshFixture)
		want  RefreshFailureKind
	}{
		{
			name: "issue access fails",
			setup: func(f *refreshFixture) {
				f.deps.IssueAccess = func(string, string) (string, time.Time, error) {
					return "", time.Time{}, errBackend
				}
			},
			want: RefreshFailureIssue,
		},
		{
			name: "issue refresh fails",
			setup: func(f *refreshFixture) {
				f.deps.IssueRefresh = func(string) (string, error) { return "", errBackend }
			},
			want: RefreshFailureIssue,
		},
		{
			name: "saving rotated token fails",
			setup: func(f *refreshFixture) {
				f.deps.Writer = &flakyWriter{inner: f.store, fail: 1}
			},
			want: RefreshFailureStore,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newRefreshFixture(t)
			f.deps.Rotate = true
			tok := f.storedRefresh(t, "user")
			tc.setup(f)

			res := RunRefresh(context.Background(), tok, f.deps)
			if res.Failure != tc.want {
				t.Fatalf("failure = %v, want %v (err=%v)", res.Failure, tc.want, res.Err)
			}
			if _, err := f.store.FindByValue(context.Background(), tok); err != nil {
				t.Fatalf("presented token not restored: %v", err)
			}
			if f.store.Len() != 1 {
				t.Fatalf("store holds %d records, want 1", f.store.Len())
			}
		})
	}
}

func TestRunRefresh_RotationDoesNotRestoreRejectedToken(t *testing.T) {
	f := newRefreshFixture(t)
	f.deps.Rotate = true
	gone := f.storedRefresh(t, "gone")

	res := RunRefresh(context.Background(), gone, f.deps)
	if res.Failure != RefreshFailureUnresolvable {
		t.Fatalf("failure = %v, want unresolvable", res.Failure)
	}
	if _, err := f.store.FindByValue(context.Background(), gone); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("rejected token still stored: %v", err)
	}
}
