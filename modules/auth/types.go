package auth

import (
	"time"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserPayload is the sanitized user representation crossing the service
// boundary. The password hash never leaves the auth module.
type UserPayload struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionResponse carries the outcome of register, login and refresh: the
// account plus a fresh token pair.
type SessionResponse struct {
	User         UserPayload `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	TokenType    string      `json:"token_type"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutResponse represents a logout response. Logout is idempotent, so
// the response carries no failure modes.
type LogoutResponse struct {
	LoggedOut bool `json:"logged_out"`
}

// ValidateTokenRequest represents an access-token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents an access-token validation response.
type ValidateTokenResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WhoAmIRequest represents an identity restore request.
type WhoAmIRequest struct {
	AccessToken string `json:"access_token"`
}

// DeleteAccountRequest represents an account deletion request. The caller
// proves ownership with a live access token.
type DeleteAccountRequest struct {
	AccessToken string `json:"access_token"`
}

// DeleteAccountResponse represents an account deletion response.
type DeleteAccountResponse struct {
	Deleted bool `json:"deleted"`
}
