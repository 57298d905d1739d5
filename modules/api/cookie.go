package api

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RefreshCookieName is the single cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// CookiePolicy fixes the attribute set of the refresh-token cookie. The
// refresh token travels exclusively in this HTTP-only cookie; the access
// token is returned in the response body and never placed in a cookie.
//
// Set and Clear must emit the exact same path, domain, SameSite and Secure
// attributes: browsers only remove a cookie when the clearing attributes
// match the setting ones.
type CookiePolicy struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite string
	MaxAge   time.Duration
}

// NewCookiePolicy derives the cookie attributes from the environment.
// Production uses Secure + SameSite=Strict. Development relaxes to
// SameSite=Lax without Secure so a cross-port local proxy still carries
// the cookie.
func NewCookiePolicy(maxAge time.Duration) CookiePolicy {
	policy := CookiePolicy{
		Path:     "/",
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   maxAge,
	}
	if os.Getenv("APP_ENV") == "production" {
		policy.Secure = true
		policy.SameSite = fiber.CookieSameSiteStrictMode
	}
	return policy
}

// Set attaches the refresh-token cookie to the response.
func (p CookiePolicy) Set(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   int(p.MaxAge.Seconds()),
		Expires:  time.Now().Add(p.MaxAge),
		Secure:   p.Secure,
		HTTPOnly: true,
		SameSite: p.SameSite,
	})
}

// Clear expires the refresh-token cookie using the identical attribute set
// it was written with.
func (p CookiePolicy) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   p.Secure,
		HTTPOnly: true,
		SameSite: p.SameSite,
	})
}
