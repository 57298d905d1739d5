package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	domain "github.com/wordtrail/wordtrail/domain/user"
)

var (
	// ErrInvalidCredentials is returned for every login failure, whether the
	// account does not exist, is deleted, or the password is wrong. Callers
	// must not be able to tell these apart.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
)

// AuthResult is returned by Register and Login: the sanitized account plus
// a fresh token pair.
type AuthResult struct {
	User   domain.Profile
	Tokens domain.TokenPair
}

// AuthService owns the session lifecycle: register, login, refresh with
// rotation, logout and identity restore.
type AuthService struct {
	users    *UserRepository
	sessions *SessionRepository
	hasher   *PasswordHasher
	signer   *TokenSigner
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users *UserRepository, sessions *SessionRepository, hasher *PasswordHasher, signer *TokenSigner) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		signer:   signer,
		now:      time.Now,
	}
}

// NormalizeEmail lower-cases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account and starts its first session.
func (s *AuthService) Register(_ context.Context, email, password, displayName string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[auth] registered user %s", user.ID)
	return s.startSession(user)
}

// Login authenticates an account and starts a new session.
func (s *AuthService) Login(_ context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn comparable time so a missing account is not
			// distinguishable from a wrong password by latency.
			s.hasher.Verify(password, enumerationDecoyHash)
			log.Printf("[auth] failed login: unknown account")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		log.Printf("[auth] failed login for user %s", user.ID)
		return nil, ErrInvalidCredentials
	}

	log.Printf("[auth] user %s logged in", user.ID)
	return s.startSession(user)
}

// Refresh rotates a session: the presented refresh token is exchanged for a
// brand-new pair and its Session row is superseded. The dual check
// (signature plus store membership) is what makes revocation possible.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.signer.Verify(TokenKindRefresh, refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session, err := s.sessions.FindByToken(refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// Signature is fine but the row is gone: rotated away,
			// logged out, or reaped. All of them mean "no longer valid".
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	// The single-row delete is the atomic claim on this rotation. When two
	// refresh calls race, exactly one removes the row; the loser sees zero
	// rows affected, which is a benign outcome, not a storage failure, and
	// is answered with the same generic invalid-token result.
	deleted, err := s.sessions.DeleteByToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to delete rotated session: %w", err)
	}
	if deleted == 0 {
		return nil, ErrInvalidToken
	}

	result, err := s.startSession(user)
	if err != nil {
		return nil, err
	}

	log.Printf("[auth] rotated session for user %s", user.ID)
	return result, nil
}

// Logout invalidates the session holding the given refresh token. It is
// idempotent: an unknown, already-rotated or expired token is a no-op.
func (s *AuthService) Logout(_ context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	deleted, err := s.sessions.DeleteByToken(refreshToken)
	if err != nil {
		log.Printf("[auth] logout delete failed: %v", err)
		return nil
	}
	if deleted > 0 {
		log.Printf("[auth] session logged out")
	}
	return nil
}

// WhoAmI verifies an access token statelessly and returns the sanitized
// profile of its subject. Used to restore identity after a reload.
func (s *AuthService) WhoAmI(_ context.Context, accessToken string) (*domain.Profile, error) {
	claims, err := s.signer.Verify(TokenKindAccess, accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	profile := user.Sanitize()
	return &profile, nil
}

// DeleteAccount soft-deletes the account behind a live access token and
// revokes every one of its sessions. The soft-deleted account is
// indistinguishable from a missing one on later logins.
func (s *AuthService) DeleteAccount(_ context.Context, accessToken string) error {
	claims, err := s.signer.Verify(TokenKindAccess, accessToken)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.users.Delete(claims.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	revoked, err := s.sessions.DeleteByUser(claims.UserID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	log.Printf("[auth] deleted account %s, revoked %d sessions", claims.UserID, revoked)
	return nil
}

// ReapExpiredSessions opportunistically removes sessions past their expiry.
func (s *AuthService) ReapExpiredSessions(_ context.Context) (int64, error) {
	return s.sessions.DeleteExpired(s.now())
}

// startSession issues a token pair for the user and persists the refresh
// half as a new Session row.
func (s *AuthService) startSession(user *domain.User) (*AuthResult, error) {
	accessToken, err := s.signer.Issue(TokenKindAccess, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refreshToken, err := s.signer.Issue(TokenKindRefresh, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(s.signer.RefreshTTL()),
		CreatedAt: now,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &AuthResult{
		User: user.Sanitize(),
		Tokens: domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    s.signer.AccessTTLSeconds(),
			TokenType:    "Bearer",
		},
	}, nil
}

// enumerationDecoyHash is a valid bcrypt hash of a random string, used to
// equalize login latency when the account does not exist.
const enumerationDecoyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
