package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "test-issuer",
	}
}

func TestTokenSigner_IssueAndVerify(t *testing.T) {
	signer := NewTokenSigner(testTokenConfig())

	for _, kind := range []TokenKind{TokenKindAccess, TokenKindRefresh} {
		t.Run(string(kind), func(t *testing.T) {
			token, err := signer.Issue(kind, "user-123", "test@example.com")
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			if token == "" {
				t.Fatal("Issue() returned empty token")
			}

			claims, err := signer.Verify(kind, token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.UserID != "user-123" {
				t.Errorf("claims.UserID = %v, want user-123", claims.UserID)
			}
			if claims.Email != "test@example.com" {
				t.Errorf("claims.Email = %v, want test@example.com", claims.Email)
			}
			if claims.TokenType != string(kind) {
				t.Errorf("claims.TokenType = %v, want %v", claims.TokenType, kind)
			}
			if claims.Subject != "user-123" {
				t.Errorf("claims.Subject = %v, want user-123", claims.Subject)
			}
		})
	}
}

func TestTokenSigner_KindsUseIndependentSecrets(t *testing.T) {
	signer := NewTokenSigner(testTokenConfig())

	accessToken, err := signer.Issue(TokenKindAccess, "user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Issue(access) error = %v", err)
	}
	refreshToken, err := signer.Issue(TokenKindRefresh, "user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Issue(refresh) error = %v", err)
	}

	// An access token never verifies as a refresh token and vice versa.
	if _, err := signer.Verify(TokenKindRefresh, accessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(refresh, accessToken) error = %v, want ErrInvalidToken", err)
	}
	if _, err := signer.Verify(TokenKindAccess, refreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(access, refreshToken) error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenSigner_CompromisedSecretCannotForgeOtherKind(t *testing.T) {
	config := testTokenConfig()
	signer := NewTokenSigner(config)

	// An attacker holding the access secret signs a token claiming to be a
	// refresh token. The signature check against the refresh secret rejects it.
	forgerConfig := config
	forgerConfig.RefreshSecret = config.AccessSecret
	forger := NewTokenSigner(forgerConfig)

	forged, err := forger.Issue(TokenKindRefresh, "user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := signer.Verify(TokenKindRefresh, forged); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() of forged token error = %v, want ErrInvalidToken", err)
	}
}

func TestTokenSigner_ExpiryBoundary(t *testing.T) {
	config := testTokenConfig()

	// A token one second past its expiry is rejected: no grace skew.
	config.AccessTTL = -time.Second
	expiredSigner := NewTokenSigner(config)
	expired, err := expiredSigner.Issue(TokenKindAccess, "user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	verifier := NewTokenSigner(testTokenConfig())
	if _, err := verifier.Verify(TokenKindAccess, expired); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() of expired token error = %v, want ErrExpiredToken", err)
	}

	// A token still one second inside its TTL is accepted.
	config.AccessTTL = time.Second
	freshSigner := NewTokenSigner(config)
	fresh, err := freshSigner.Issue(TokenKindAccess, "user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := verifier.Verify(TokenKindAccess, fresh); err != nil {
		t.Errorf("Verify() of fresh token error = %v", err)
	}
}

func TestTokenSigner_RejectsMalformedAndTampered(t *testing.T) {
	signer := NewTokenSigner(testTokenConfig())

	token, err := signer.Issue(TokenKindAccess, "user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tampered := token[:len(token)-2] + "xx"

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "tampered signature", token: tampered},
		{name: "header only", token: strings.Split(token, ".")[0]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := signer.Verify(TokenKindAccess, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", tt.token, err)
			}
		})
	}
}

func TestTokenSigner_UnknownKind(t *testing.T) {
	signer := NewTokenSigner(testTokenConfig())

	if _, err := signer.Issue(TokenKind("api-key"), "user-123", "test@example.com"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Issue(unknown kind) error = %v, want ErrInvalidToken", err)
	}
}
