package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with,
	// signed with the wrong secret or of the wrong kind.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// TokenKind selects which signing secret and TTL a token uses.
type TokenKind string

const (
	// TokenKindAccess is the short-lived stateless credential.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is the long-lived store-backed credential.
	TokenKindRefresh TokenKind = "refresh"
)

// TokenConfig holds token signer configuration. Access and refresh tokens
// are signed with independent secrets so that a compromised access secret
// cannot forge refresh tokens and vice versa.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// DefaultTokenConfig returns a default token configuration.
// In production, the secrets must be loaded from environment variables.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret-change-in-production",
		RefreshSecret: "refresh-secret-change-in-production",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "wordtrail",
	}
}

// TokenClaims is the fixed claim structure carried by both token kinds.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies signed, time-bounded tokens.
type TokenSigner struct {
	config TokenConfig
}

// NewTokenSigner creates a new TokenSigner with the given configuration.
func NewTokenSigner(config TokenConfig) *TokenSigner {
	return &TokenSigner{
		config: config,
	}
}

// Issue produces a signed token of the given kind for the subject.
// Expiry is absolute: issue time plus the kind's TTL.
func (s *TokenSigner) Issue(kind TokenKind, userID, email string) (string, error) {
	secret, ttl, err := s.kindParams(kind)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := TokenClaims{
		UserID:    userID,
		Email:     email,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique ID makes every issued token distinct, even two
			// refresh tokens minted for the same user in the same second.
			ID:        uuid.New().String(),
			Issuer:    s.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verify checks signature, expiry and kind, and returns the claims.
// It fails closed: any malformed, expired, tampered or wrong-kind token is
// rejected with ErrInvalidToken. No clock-skew grace window is applied.
func (s *TokenSigner) Verify(kind TokenKind, tokenString string) (*TokenClaims, error) {
	secret, _, err := s.kindParams(kind)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// A refresh token presented where an access token is expected (or the
	// other way round) already fails the signature check, but the embedded
	// kind is enforced as well.
	if claims.TokenType != string(kind) {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// AccessTTLSeconds returns the access token lifetime in seconds.
func (s *TokenSigner) AccessTTLSeconds() int64 {
	return int64(s.config.AccessTTL.Seconds())
}

// RefreshTTL returns the refresh token lifetime.
func (s *TokenSigner) RefreshTTL() time.Duration {
	return s.config.RefreshTTL
}

func (s *TokenSigner) kindParams(kind TokenKind) (string, time.Duration, error) {
	switch kind {
	case TokenKindAccess:
		return s.config.AccessSecret, s.config.AccessTTL, nil
	case TokenKindRefresh:
		return s.config.RefreshSecret, s.config.RefreshTTL, nil
	default:
		return "", 0, ErrInvalidToken
	}
}
