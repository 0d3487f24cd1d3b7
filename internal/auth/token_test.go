package auth

import (
	"testing"
	"time"
)

// --- テスト ---

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m := NewTokenManager("test-secret", 1*time.Hour)

	token, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want user-1", userID)
	}
}

func TestTokenManager_Verify_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 1*time.Hour)
	verifier := NewTokenManager("secret-b", 1*time.Hour)

	token, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := verifier.Verify(token); err == nil {
		t.Error("expected verification failure for token signed with another secret")
	}
}

func TestTokenManager_Verify_RejectsExpiredToken(t *testing.T) {
	m := NewTokenManager("test-secret", -1*time.Minute)

	token, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := m.Verify(token); err == nil {
		t.Error("expected verification failure for expired token")
	}
}

func TestTokenManager_Verify_RejectsMalformedToken(t *testing.T) {
	m := NewTokenManager("test-secret", 1*time.Hour)

	if _, err := m.Verify("not-a-jwt"); err == nil {
		t.Error("expected verification failure for malformed token")
	}
}

func TestDecodeExpiry_ReturnsExpirationWithoutVerification(t *testing.T) {
	m := NewTokenManager("some-other-secret", 30*time.Minute)
	token, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// 署名鍵を知らなくても有効期限は読める
	expiry, err := DecodeExpiry(token)
	if err != nil {
		t.Fatalf("DecodeExpiry failed: %v", err)
	}

	want := time.Now().Add(30 * time.Minute)
	if diff := expiry.Sub(want); diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("expiry = %v, want around %v", expiry, want)
	}
}

func TestDecodeExpiry_RejectsMalformedToken(t *testing.T) {
	if _, err := DecodeExpiry("garbage"); err == nil {
		t.Error("expected decode failure for malformed token")
	}
}
