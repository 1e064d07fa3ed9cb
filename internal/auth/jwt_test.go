package auth

import (
	"testing"
	"time"
)

func TestVerifyToken_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	ident := Identity{
		ID:                  "user-123",
		Name:                "Ada",
		Email:               "ada@example.org",
		Industry:            "Software",
		Skills:              []string{"go", "webrtc"},
		NetworkingAvailable: true,
	}

	tok, err := GenerateToken(ident, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := VerifyToken(tok, secret)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if got.ID != ident.ID || got.Name != ident.Name || got.Email != ident.Email {
		t.Fatalf("identity mismatch: got %+v want %+v", got, ident)
	}
	if !got.NetworkingAvailable {
		t.Fatalf("NetworkingAvailable flag lost in round trip")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken(Identity{ID: "u1"}, secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := VerifyToken(tok, secret); err == nil {
		t.Fatalf("expected error for expired token, got nil")
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(Identity{ID: "u2"}, []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := VerifyToken(tok, []byte("wrong-secret")); err == nil {
		t.Fatalf("expected error for invalid signature, got nil")
	}
}

func TestVerifyToken_MalformedString(t *testing.T) {
	t.Parallel()

	if _, err := VerifyToken("not.a.jwt", []byte("k")); err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}

func TestVerifyToken_MissingUserID(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := GenerateToken(Identity{Name: "no id"}, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := VerifyToken(tok, secret); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
