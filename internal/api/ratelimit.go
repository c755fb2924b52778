package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"
)

// RateLimit returns middleware that admits at most perSecond requests per
// second with the given burst, shared by all clients. /healthz is exempt.
func RateLimit(perSecond float64, burst int) echo.MiddlewareFunc {
	if burst < 1 {
		burst = max(int(perSecond), 1)
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if c.Request().URL.Path == "/healthz" {
				return next(c)
			}
			if !limiter.Allow() {
				return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "too many requests", "", "rate_limited")
			}
			return next(c)
		}
	}
}
