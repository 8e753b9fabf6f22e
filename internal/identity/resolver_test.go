package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/park285/chess-arena/pkg/gamedto"
)

func TestResolve_AnonymousPassthrough(t *testing.T) {
	r := NewResolver(nil)
	id, err := r.Resolve(context.Background(), gamedto.Credentials{AnonymousID: "anon-1"}, "Alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.ID != "anon-1" || id.DisplayName != "Alice" || id.Authenticated {
		t.Fatalf("identity = %+v", id)
	}
}

func TestResolve_BlankAnonymousGetsGeneratedID(t *testing.T) {
	r := NewResolver(nil)
	a, err := r.Resolve(context.Background(), gamedto.Credentials{}, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.ID == "" {
		t.Fatalf("blank anonymous id was not generated")
	}
	if a.DisplayName != "anonymous" {
		t.Fatalf("display name = %q, want anonymous", a.DisplayName)
	}
	b, _ := r.Resolve(context.Background(), gamedto.Credentials{}, "")
	if a.ID == b.ID {
		t.Fatalf("generated ids collide")
	}
}

func TestResolve_AccountToken(t *testing.T) {
	v := NewHMACValidator("secret")
	r := NewResolver(v)

	token := "acct-7:" + v.Sign("acct-7")
	id, err := r.Resolve(context.Background(), gamedto.Credentials{AccountToken: token}, "Bob")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.ID != "acct-7" || !id.Authenticated {
		t.Fatalf("identity = %+v", id)
	}
}

func TestResolve_BadToken(t *testing.T) {
	v := NewHMACValidator("secret")
	r := NewResolver(v)

	for _, token := range []string{
		"acct-7:deadbeef",
		"acct-7:" + NewHMACValidator("other").Sign("acct-7"),
		"no-separator",
		":sig-only",
	} {
		if _, err := r.Resolve(context.Background(), gamedto.Credentials{AccountToken: token}, "Bob"); !errors.Is(err, ErrAuthorization) {
			t.Fatalf("token %q: err = %v, want ErrAuthorization", token, err)
		}
	}
}

func TestResolve_TokenWithoutValidator(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.Resolve(context.Background(), gamedto.Credentials{AccountToken: "x:y"}, ""); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("err = %v, want ErrAuthorization", err)
	}
}
