package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndVerifyTokenRoundTrip(t *testing.T) {
	ownerID := uuid.New()
	secret := "test-secret-key"

	tokenStr, err := IssueToken(secret, ownerID, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	got, err := VerifyToken(secret, tokenStr)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got != ownerID {
		t.Errorf("VerifyToken returned %s, want %s", got, ownerID)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	tokenStr, err := IssueToken("correct-secret", uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := VerifyToken("wrong-secret", tokenStr); err == nil {
		t.Error("VerifyToken with the wrong secret should fail")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	tokenStr, err := IssueToken("secret", uuid.New(), -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := VerifyToken("secret", tokenStr); err == nil {
		t.Error("VerifyToken on an already-expired token should fail")
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	if _, err := VerifyToken("secret", "not-a-jwt"); err == nil {
		t.Error("VerifyToken on a malformed token should fail")
	}
}
