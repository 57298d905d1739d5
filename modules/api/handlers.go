package api

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	domain "github.com/wordtrail/wordtrail/domain/user"
	"github.com/wordtrail/wordtrail/modules/auth"
)

// Handlers contains HTTP handlers for the auth surface.
type Handlers struct {
	authAdapter auth.AuthPort
	cookies     CookiePolicy
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authAdapter auth.AuthPort, cookies CookiePolicy) *Handlers {
	return &Handlers{
		authAdapter: authAdapter,
		cookies:     cookies,
	}
}

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.authAdapter.Register(c.UserContext(), auth.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return h.handleAuthError(c, err)
	}

	h.cookies.Set(c, resp.RefreshToken)
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(resp))
}

// Login handles user login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := h.authAdapter.Login(c.UserContext(), auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if strings.Contains(err.Error(), "invalid email or password") {
			log.Printf("[api] failed login for %s from %s", req.Email, c.IP())
		}
		return h.handleAuthError(c, err)
	}

	h.cookies.Set(c, resp.RefreshToken)
	return c.Status(fiber.StatusOK).JSON(sessionResponse(resp))
}

// Refresh rotates the session behind the refresh cookie. The request
// carries no body; the cookie is the only credential.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshCookieName)
	if refreshToken == "" {
		return unauthenticated(c)
	}

	resp, err := h.authAdapter.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		// Only a rejected token maps to 401; a store failure must not
		// read as "session revoked" or clients would drop valid sessions.
		return h.handleAuthError(c, err)
	}

	h.cookies.Set(c, resp.RefreshToken)
	return c.Status(fiber.StatusOK).JSON(TokenResponse{
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		TokenType:   resp.TokenType,
	})
}

// Logout invalidates the session behind the refresh cookie and clears the
// cookie. It always succeeds: logging out twice, or with an expired
// session, is not an error.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	refreshToken := c.Cookies(RefreshCookieName)
	if refreshToken != "" {
		if err := h.authAdapter.Logout(c.UserContext(), refreshToken); err != nil {
			log.Printf("[api] logout call failed: %v", err)
		}
	}

	h.cookies.Clear(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// Me restores identity from the bearer access token. Used by clients to
// re-establish who is signed in after a reload without re-prompting
// credentials.
func (h *Handlers) Me(c *fiber.Ctx) error {
	token, ok := bearerToken(c)
	if !ok {
		return unauthenticated(c)
	}

	user, err := h.authAdapter.WhoAmI(c.UserContext(), token)
	if err != nil {
		return h.handleAuthError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	})
}

// Profile returns the authenticated caller's profile, resolved from the
// claims injected by RequireAuth.
func (h *Handlers) Profile(c *fiber.Ctx) error {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok {
		return unauthenticated(c)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id": claims.UserID,
		"email":   claims.Email,
	})
}

// SessionStatus reports whether the caller is signed in, using the claims
// OptionalAuth injects. Anonymous callers get a 200 with
// authenticated=false, never a 401.
func (h *Handlers) SessionStatus(c *fiber.Ctx) error {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok {
		return c.Status(fiber.StatusOK).JSON(SessionStatusResponse{})
	}

	return c.Status(fiber.StatusOK).JSON(SessionStatusResponse{
		Authenticated: true,
		UserID:        claims.UserID,
		Email:         claims.Email,
	})
}

// DeleteAccount soft-deletes the caller's account, revokes every session
// and clears the refresh cookie. Proof of ownership is the bearer access
// token, re-checked by the auth module.
func (h *Handlers) DeleteAccount(c *fiber.Ctx) error {
	token, ok := bearerToken(c)
	if !ok {
		return unauthenticated(c)
	}

	if err := h.authAdapter.DeleteAccount(c.UserContext(), token); err != nil {
		return h.handleAuthError(c, err)
	}

	h.cookies.Clear(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func sessionResponse(resp auth.SessionResponse) SessionResponse {
	return SessionResponse{
		User: UserResponse{
			ID:          resp.User.ID,
			Email:       resp.User.Email,
			DisplayName: resp.User.DisplayName,
			CreatedAt:   resp.User.CreatedAt,
		},
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		TokenType:   resp.TokenType,
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

// handleAuthError maps auth-module failures to the HTTP error taxonomy.
// Errors cross the service container as messages, so matching is on known
// message text. Anything unrecognized is logged in full and reported as a
// generic server error.
func (h *Handlers) handleAuthError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "invalid email or password"):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case strings.Contains(errStr, "user with this email already exists"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case strings.Contains(errStr, "invalid email format"):
		return badRequest(c, "Invalid email format")
	case strings.Contains(errStr, "password must be at least"):
		return badRequest(c, "Password must be at least 8 characters with an uppercase letter, a lowercase letter and a digit")
	case strings.Contains(errStr, "password must be at most"):
		return badRequest(c, "Password must be at most 72 characters")
	case strings.Contains(errStr, "invalid token"):
		return unauthenticated(c)
	default:
		log.Printf("[api] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}
