package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	domain "github.com/wordtrail/wordtrail/domain/user"
	"github.com/wordtrail/wordtrail/modules/auth"
)

// mockAuthPort implements auth.AuthPort for testing.
type mockAuthPort struct {
	registerFunc      func(ctx context.Context, req auth.RegisterRequest) (auth.SessionResponse, error)
	loginFunc         func(ctx context.Context, req auth.LoginRequest) (auth.SessionResponse, error)
	refreshFunc       func(ctx context.Context, refreshToken string) (auth.SessionResponse, error)
	logoutFunc        func(ctx context.Context, refreshToken string) error
	validateTokenFunc func(ctx context.Context, token string) (*domain.Claims, error)
	whoAmIFunc        func(ctx context.Context, accessToken string) (auth.UserPayload, error)
	deleteAccountFunc func(ctx context.Context, accessToken string) error
}

func (m *mockAuthPort) Register(ctx context.Context, req auth.RegisterRequest) (auth.SessionResponse, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, req)
	}
	return auth.SessionResponse{}, errors.New("not implemented")
}

func (m *mockAuthPort) Login(ctx context.Context, req auth.LoginRequest) (auth.SessionResponse, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, req)
	}
	return auth.SessionResponse{}, errors.New("not implemented")
}

func (m *mockAuthPort) Refresh(ctx context.Context, refreshToken string) (auth.SessionResponse, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, refreshToken)
	}
	return auth.SessionResponse{}, errors.New("not implemented")
}

func (m *mockAuthPort) Logout(ctx context.Context, refreshToken string) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, refreshToken)
	}
	return nil
}

func (m *mockAuthPort) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	if m.validateTokenFunc != nil {
		return m.validateTokenFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) WhoAmI(ctx context.Context, accessToken string) (auth.UserPayload, error) {
	if m.whoAmIFunc != nil {
		return m.whoAmIFunc(ctx, accessToken)
	}
	return auth.UserPayload{}, errors.New("not implemented")
}

func (m *mockAuthPort) DeleteAccount(ctx context.Context, accessToken string) error {
	if m.deleteAccountFunc != nil {
		return m.deleteAccountFunc(ctx, accessToken)
	}
	return errors.New("not implemented")
}

func validatingPort(claims *domain.Claims) *mockAuthPort {
	return &mockAuthPort{
		validateTokenFunc: func(_ context.Context, token string) (*domain.Claims, error) {
			if token == "valid-token" {
				return claims, nil
			}
			return nil, errors.New("token validation failed: invalid token")
		},
	}
}

func TestRequireAuth(t *testing.T) {
	claims := &domain.Claims{UserID: "user-123", Email: "test@example.com"}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "missing authorization header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "not a bearer scheme",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "bearer without token",
			authHeader:     "Bearer ",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer tampered-token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "valid token",
			authHeader:     "Bearer valid-token",
			expectedStatus: http.StatusOK,
		},
	}

	var unauthorizedBodies []string

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(RequireAuth(validatingPort(claims)))
			app.Get("/", func(c *fiber.Ctx) error {
				got, ok := c.Locals(UserContextKey).(*domain.Claims)
				if !ok || got.UserID != claims.UserID {
					t.Error("claims not injected into context")
				}
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.expectedStatus)
			}

			if resp.StatusCode == http.StatusUnauthorized {
				body, _ := io.ReadAll(resp.Body)
				unauthorizedBodies = append(unauthorizedBodies, string(body))
			}
		})
	}

	// Every rejection looks identical: missing header, wrong scheme and
	// bad token must not be distinguishable from the response.
	for i := 1; i < len(unauthorizedBodies); i++ {
		if unauthorizedBodies[i] != unauthorizedBodies[0] {
			t.Errorf("401 bodies differ: %q vs %q", unauthorizedBodies[0], unauthorizedBodies[i])
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	claims := &domain.Claims{UserID: "user-123", Email: "test@example.com"}

	tests := []struct {
		name       string
		authHeader string
		wantClaims bool
	}{
		{
			name:       "no header proceeds anonymously",
			authHeader: "",
			wantClaims: false,
		},
		{
			name:       "invalid token proceeds anonymously",
			authHeader: "Bearer tampered-token",
			wantClaims: false,
		},
		{
			name:       "valid token injects identity",
			authHeader: "Bearer valid-token",
			wantClaims: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(OptionalAuth(validatingPort(claims)))
			app.Get("/", func(c *fiber.Ctx) error {
				_, ok := c.Locals(UserContextKey).(*domain.Claims)
				if ok != tt.wantClaims {
					t.Errorf("claims present = %v, want %v", ok, tt.wantClaims)
				}
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
		})
	}
}
