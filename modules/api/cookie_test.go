package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func cookieFromResponse(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	t.Fatal("refresh cookie not present in response")
	return nil
}

func runCookieHandler(t *testing.T, handler fiber.Handler) *http.Response {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	return resp
}

func TestCookiePolicy_DevelopmentAttributes(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	policy := NewCookiePolicy(7 * 24 * time.Hour)

	resp := runCookieHandler(t, func(c *fiber.Ctx) error {
		policy.Set(c, "refresh-token-value")
		return c.SendStatus(fiber.StatusOK)
	})

	cookie := cookieFromResponse(t, resp)
	if cookie.Value != "refresh-token-value" {
		t.Errorf("cookie.Value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("cookie is not HttpOnly")
	}
	if cookie.Secure {
		t.Error("development cookie must not be Secure")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie.SameSite = %v, want Lax", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Errorf("cookie.Path = %q, want /", cookie.Path)
	}
	if cookie.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Errorf("cookie.MaxAge = %d, want refresh TTL", cookie.MaxAge)
	}
}

func TestCookiePolicy_ProductionAttributes(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	policy := NewCookiePolicy(7 * 24 * time.Hour)

	resp := runCookieHandler(t, func(c *fiber.Ctx) error {
		policy.Set(c, "refresh-token-value")
		return c.SendStatus(fiber.StatusOK)
	})

	cookie := cookieFromResponse(t, resp)
	if !cookie.Secure {
		t.Error("production cookie must be Secure")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie.SameSite = %v, want Strict", cookie.SameSite)
	}
	if !cookie.HttpOnly {
		t.Error("cookie is not HttpOnly")
	}
}

// A browser only removes a cookie when the clearing attribute set matches
// the setting one, so Set and Clear must agree on path, domain, SameSite
// and Secure.
func TestCookiePolicy_ClearMatchesSet(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	policy := NewCookiePolicy(7 * 24 * time.Hour)

	setResp := runCookieHandler(t, func(c *fiber.Ctx) error {
		policy.Set(c, "refresh-token-value")
		return c.SendStatus(fiber.StatusOK)
	})
	clearResp := runCookieHandler(t, func(c *fiber.Ctx) error {
		policy.Clear(c)
		return c.SendStatus(fiber.StatusOK)
	})

	set := cookieFromResponse(t, setResp)
	clear := cookieFromResponse(t, clearResp)

	if set.Path != clear.Path {
		t.Errorf("Path mismatch: set %q, clear %q", set.Path, clear.Path)
	}
	if set.Domain != clear.Domain {
		t.Errorf("Domain mismatch: set %q, clear %q", set.Domain, clear.Domain)
	}
	if set.SameSite != clear.SameSite {
		t.Errorf("SameSite mismatch: set %v, clear %v", set.SameSite, clear.SameSite)
	}
	if set.Secure != clear.Secure {
		t.Errorf("Secure mismatch: set %v, clear %v", set.Secure, clear.Secure)
	}
	if set.HttpOnly != clear.HttpOnly {
		t.Errorf("HttpOnly mismatch: set %v, clear %v", set.HttpOnly, clear.HttpOnly)
	}

	if clear.Value != "" {
		t.Errorf("clear cookie value = %q, want empty", clear.Value)
	}
	if clear.MaxAge >= 0 && clear.Expires.After(time.Now()) {
		t.Error("clear cookie does not expire the cookie")
	}
}
