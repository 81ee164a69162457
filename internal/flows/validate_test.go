package flows

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Grara/deepblue-backend/jwt"
)

func TestRunValidate(t *testing.T) {
	clock := newTestClock()
	codec := newTestCodec(t, clock)
	deps := ValidateDeps{Parse: codec.Validate}

	access, err := codec.Issue("user", "ROLE_USER", jwt.UseAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	refreshTok, err := codec.Issue("user", "", jwt.UseRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	noSubject, err := codec.Issue("", "ROLE_USER", jwt.UseAccess, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res := RunValidate(access, deps)
	if res.Failure != ValidateFailureNone || res.Subject != "user" || res.Scope != "ROLE_USER" {
		t.Fatalf("unexpected result: %+v", res)
	}

	parts := strings.Split(access, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	cases := []struct {
		name  string
		token string
		want  ValidateFailureKind
	}{
		{"empty", "", ValidateFailureEmpty},
		{"garbage", "not-a-token", ValidateFailureMalformed},
		{"tampered", tampered, ValidateFailureSignature},
		{"refresh use", refreshTok, ValidateFailureWrongUse},
		{"no subject", noSubject, ValidateFailureMissingSubject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunValidate(tc.token, deps)
			if res.Failure != tc.want {
				t.Fatalf("failure = %v, want %v (err=%v)", res.Failure, tc.want, res.Err)
			}
			if res.Subject != "" {
				t.Fatalf("failed validation leaked subject %q", res.Subject)
			}
		})
	}

	clock.Advance(time.Minute)
	res = RunValidate(access, deps)
	if res.Failure != ValidateFailureExpired || !errors.Is(res.Err, jwt.ErrExpired) {
		t.Fatalf("expected expired, got %+v", res)
	}
}
