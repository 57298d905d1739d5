package api

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wordtrail/wordtrail/modules/auth"
)

const (
	// UserContextKey is the key used to store user claims in the Fiber context.
	UserContextKey = "user"
)

// RequireAuth validates the bearer access token on protected routes. Every
// rejection looks identical to the caller; the internal cause only appears
// in logs.
func RequireAuth(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return unauthenticated(c)
		}

		claims, err := authAdapter.ValidateToken(c.UserContext(), token)
		if err != nil {
			log.Printf("[api] rejected access token: %v", err)
			return unauthenticated(c)
		}

		c.Locals(UserContextKey, claims)
		return c.Next()
	}
}

// OptionalAuth injects caller identity when a valid bearer token is present
// and lets the request proceed anonymously otherwise. Used on public routes
// that personalize their response for signed-in users.
func OptionalAuth(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Next()
		}

		claims, err := authAdapter.ValidateToken(c.UserContext(), token)
		if err != nil {
			log.Printf("[api] ignoring invalid access token on public route: %v", err)
			return c.Next()
		}

		c.Locals(UserContextKey, claims)
		return c.Next()
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", false
	}
	return token, true
}

// unauthenticated writes the single 401 envelope used for every
// authentication failure, whatever its internal cause.
func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "Authentication required",
	})
}
