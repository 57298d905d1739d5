package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/wordtrail/wordtrail/domain/user"
)

// AuthPort defines the interface other modules use to reach the auth
// module. Errors cross the service container as messages, so callers match
// on message text rather than sentinel identity.
type AuthPort interface {
	Register(ctx context.Context, req RegisterRequest) (SessionResponse, error)
	Login(ctx context.Context, req LoginRequest) (SessionResponse, error)
	Refresh(ctx context.Context, refreshToken string) (SessionResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	WhoAmI(ctx context.Context, accessToken string) (UserPayload, error)
	DeleteAccount(ctx context.Context, accessToken string) error
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Register creates a new account with its first session.
func (a *AuthAdapter) Register(ctx context.Context, req RegisterRequest) (SessionResponse, error) {
	var resp SessionResponse
	if err := call(ctx, a, "register", &req, &resp); err != nil {
		return SessionResponse{}, err
	}
	return resp, nil
}

// Login authenticates an account and starts a session.
func (a *AuthAdapter) Login(ctx context.Context, req LoginRequest) (SessionResponse, error) {
	var resp SessionResponse
	if err := call(ctx, a, "login", &req, &resp); err != nil {
		return SessionResponse{}, err
	}
	return resp, nil
}

// Refresh rotates the session behind the given refresh token.
func (a *AuthAdapter) Refresh(ctx context.Context, refreshToken string) (SessionResponse, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp SessionResponse
	if err := call(ctx, a, "refresh-token", &req, &resp); err != nil {
		return SessionResponse{}, err
	}
	return resp, nil
}

// Logout invalidates the session behind the given refresh token.
func (a *AuthAdapter) Logout(ctx context.Context, refreshToken string) error {
	req := LogoutRequest{RefreshToken: refreshToken}
	var resp LogoutResponse
	return call(ctx, a, "logout", &req, &resp)
}

// ValidateToken validates an access token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := call(ctx, a, "validate-token", &req, &resp); err != nil {
		return nil, err
	}

	if !resp.Valid {
		return nil, fmt.Errorf("token validation failed: %s", resp.Error)
	}

	return &domain.Claims{
		UserID: resp.UserID,
		Email:  resp.Email,
	}, nil
}

// WhoAmI restores the sanitized profile behind an access token.
func (a *AuthAdapter) WhoAmI(ctx context.Context, accessToken string) (UserPayload, error) {
	req := WhoAmIRequest{AccessToken: accessToken}
	var resp UserPayload
	if err := call(ctx, a, "whoami", &req, &resp); err != nil {
		return UserPayload{}, err
	}
	return resp, nil
}

// DeleteAccount soft-deletes the account behind the access token and
// revokes all of its sessions.
func (a *AuthAdapter) DeleteAccount(ctx context.Context, accessToken string) error {
	req := DeleteAccountRequest{AccessToken: accessToken}
	var resp DeleteAccountResponse
	return call(ctx, a, "delete-account", &req, &resp)
}

func call[T1 any, T2 any](ctx context.Context, a *AuthAdapter, service string, req *T1, resp *T2) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}
