package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAnonymousEnsurer_StableWithinSession(t *testing.T) {
	ens := NewAnonymousEnsurer()
	ctx := context.Background()

	first, err := ens.Ensure(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.UID == "" || !first.Anonymous {
		t.Fatalf("expected anonymous identity with uid, got %+v", first)
	}

	second, err := ens.Ensure(ctx)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.UID != first.UID {
		t.Fatalf("identity should be stable within a session: %q vs %q", second.UID, first.UID)
	}
}

func TestGate_LoginAndVerify(t *testing.T) {
	hash, err := HashPhrase("open-sesame")
	if err != nil {
		t.Fatalf("hash phrase: %v", err)
	}

	op := Operator{OwnerID: "main-artist", Name: "主委託老師"}
	gate := NewGate(SharedSecret(hash), op, "test-secret")

	admitted, token, err := gate.Login("open-sesame")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if admitted != op {
		t.Fatalf("expected fixed operator identity, got %+v", admitted)
	}
	if token == "" {
		t.Fatal("expected session token")
	}

	verified, err := gate.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if verified != op {
		t.Fatalf("token round-trip mismatch: %+v", verified)
	}
}

func TestGate_WrongPhrase(t *testing.T) {
	hash, _ := HashPhrase("open-sesame")
	gate := NewGate(SharedSecret(hash), Operator{OwnerID: "main-artist"}, "test-secret")

	if _, _, err := gate.Login("wrong"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestGate_ExpiredToken(t *testing.T) {
	hash, _ := HashPhrase("open-sesame")
	gate := NewGate(SharedSecret(hash), Operator{OwnerID: "main-artist"}, "test-secret")

	issued := time.Now()
	gate.WithClock(func() time.Time { return issued })
	_, token, err := gate.Login("open-sesame")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	gate.WithClock(func() time.Time { return issued.Add(25 * time.Hour) })
	if _, err := gate.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestGate_CustomCredentialCheck(t *testing.T) {
	calls := 0
	check := CredentialCheck(func(phrase string) error {
		calls++
		if phrase != "workspace-42" {
			return ErrAccessDenied
		}
		return nil
	})
	gate := NewGate(check, Operator{OwnerID: "studio", Name: "Studio"}, "test-secret")

	if _, _, err := gate.Login("workspace-42"); err != nil {
		t.Fatalf("login with custom check: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one check call, got %d", calls)
	}
}
