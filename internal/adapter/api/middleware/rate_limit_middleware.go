package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"changas/internal/infrastructure/ratelimit"
	"changas/pkg/errors"
	"changas/pkg/logger"
	"changas/pkg/response"
)

// RateLimit throttles state-changing requests per authenticated user. Reads
// pass through.
func RateLimit(limiter *ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			key, _ := c.Get("uid").(string)
			if key == "" {
				key = c.RealIP()
			}

			if ok, wait := limiter.Allow(key); !ok {
				logger.Warn("Rate limit exceeded for %s on %s", key, c.Path())
				seconds := int(wait.Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
				return response.Error(c, errors.TooManyRequests(fmt.Sprintf("Too many requests, retry in %ds", seconds)))
			}

			return next(c)
		}
	}
}
