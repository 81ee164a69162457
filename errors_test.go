package deepblue

import (
	"errors"
	"testing"
)

func TestRejectReasonErrMapping(t *testing.T) {
	cases := []struct {
		reason RejectReason
		want   error
		name   string
	}{
		{ReasonUnknownRefreshToken, ErrUnknownRefreshToken, "unknown_refresh_token"},
		{ReasonMalformedToken, ErrMalformedToken, "malformed_token"},
		{ReasonSignatureMismatch, ErrSignatureMismatch, "signature_mismatch"},
		{ReasonExpired, ErrTokenExpired, "expired"},
		{ReasonMissingSubject, ErrMissingSubjectClaim, "missing_subject_claim"},
		{ReasonSubjectUnresolvable, ErrSubjectUnresolvable, "subject_unresolvable"},
		{ReasonStoreUnavailable, ErrRefreshStoreUnavailable, "store_unavailable"},
		{ReasonIssueFailed, ErrTokenIssueFailed, "issue_failed"},
	}
	for _, tc := range cases {
		if !errors.Is(tc.reason.Err(), tc.want) {
			t.Fatalf("%v: Err() = %v, want %v", tc.reason, tc.reason.Err(), tc.want)
		}
		if got := tc.reason.String(); got != tc.name {
			t.Fatalf("String() = %q, want %q", got, tc.name)
		}
	}

	if ReasonNone.Err() != nil {
		t.Fatal("ReasonNone must map to nil")
	}
	if got := RejectReason(99).String(); got != "unknown" {
		t.Fatalf("out of range String() = %q", got)
	}
}
