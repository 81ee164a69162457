package deepblue

import (
	"context"
	"testing"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{Subject: "user", Scope: "ROLE_USER"})

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("expected principal")
	}
	if p.Subject != "user" || p.Scope != "ROLE_USER" {
		t.Fatalf("principal = %+v", p)
	}
}

func TestPrincipalFromContextAnonymous(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("empty context reported a principal")
	}
	//nolint:staticcheck // nil context is part of the contract
	if _, ok := PrincipalFromContext(nil); ok {
		t.Fatal("nil context reported a principal")
	}
	if _, ok := PrincipalFromContext(WithPrincipal(context.Background(), Principal{})); ok {
		t.Fatal("zero principal reported as authenticated")
	}
}
