package session

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	mgr, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	signed, err := mgr.Issue("user@example.com", "ya29.upstream-token")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sess, err := mgr.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sess.Email != "user@example.com" {
		t.Errorf("Email = %q", sess.Email)
	}
	if sess.AccessToken != "ya29.upstream-token" {
		t.Errorf("AccessToken = %q", sess.AccessToken)
	}
	if time.Until(sess.ExpiresAt) <= 0 {
		t.Error("ExpiresAt should be in the future")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuing, _ := NewManager("secret-a", time.Hour)
	verifying, _ := NewManager("secret-b", time.Hour)

	signed, err := issuing.Issue("user@example.com", "tok")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := verifying.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	mgr, _ := NewManager("test-secret", time.Nanosecond)

	signed, err := mgr.Issue("user@example.com", "tok")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := mgr.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	mgr, _ := NewManager("test-secret", time.Hour)
	if _, err := mgr.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestIssueRequiresAccessToken(t *testing.T) {
	mgr, _ := NewManager("test-secret", time.Hour)
	if _, err := mgr.Issue("user@example.com", ""); err == nil {
		t.Error("expected error for empty access token")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := NewManager("secret", 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}
