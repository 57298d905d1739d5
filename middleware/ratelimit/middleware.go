package ratelimit

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Limiter is the check performed per request. *SlidingWindowLimiter is the
// production implementation; tests substitute fakes.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// ResetLimiter is a Limiter that can clear the window for a key. When the
// limiter supports it, PerIP resets the key after a successful request, so
// earlier failed attempts stop counting once the caller gets through.
type ResetLimiter interface {
	Limiter
	Reset(ctx context.Context, key string) error
}

// PerIP returns a Fiber middleware that throttles requests by client IP.
// Exceeding the limit yields 429 with a rate-limit envelope, distinct from
// the 401 an invalid credential produces. Limiter failures fail open.
func PerIP(limiter Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		if ip == "" {
			ip = "unknown"
		}

		result, err := limiter.Allow(c.Context(), ip)
		if err != nil {
			slog.Warn("rate limit check failed, allowing request", "ip", ip, "error", err)
			return c.Next()
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			slog.Warn("rate limit exceeded", "ip", ip, "limit", result.Limit)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many attempts, try again later",
			})
		}

		if err := c.Next(); err != nil {
			return err
		}

		// A successful attempt clears the window.
		if r, ok := limiter.(ResetLimiter); ok && c.Response().StatusCode() < fiber.StatusBadRequest {
			if err := r.Reset(c.Context(), ip); err != nil {
				slog.Warn("rate limit reset failed", "ip", ip, "error", err)
			}
		}
		return nil
	}
}

func setRateLimitHeaders(c *fiber.Ctx, result *Result) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.Allowed {
		c.Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
	}
}
