package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, 24*time.Hour)

	token, expiresAt, err := issuer.Issue(42, "ADMIN", AccessToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 59*time.Minute {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := issuer.Parse(token, AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Fatalf("expected user 42, got %d (%v)", id, err)
	}
	if claims.Role != "ADMIN" {
		t.Fatalf("expected role ADMIN, got %q", claims.Role)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be set")
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, 24*time.Hour)
	token, _, err := issuer.Issue(1, "USER", RefreshToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Parse(token, AccessToken); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, _, err := NewIssuer("one", time.Hour, time.Hour).Issue(1, "USER", AccessToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer("two", time.Hour, time.Hour).Parse(token, AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.Issue(1, "USER", AccessToken)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.Parse(token, AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestIssuedTokensAreUnique(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, time.Hour)
	a, _, _ := issuer.Issue(1, "USER", RefreshToken)
	b, _, _ := issuer.Issue(1, "USER", RefreshToken)
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
	if HashToken(a) == HashToken(b) || len(HashToken(a)) != 64 {
		t.Fatalf("unexpected hashes")
	}
}
