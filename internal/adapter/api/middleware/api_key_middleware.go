package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"

	"changas/pkg/errors"
	"changas/pkg/response"
)

// APIKey guards internal endpoints called by other services. An empty key
// disables the endpoints entirely.
func APIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return response.Error(c, errors.Forbidden("Internal API is disabled", nil))
			}

			got := c.Request().Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return response.Error(c, errors.Unauthorized("Invalid API key", nil))
			}

			return next(c)
		}
	}
}
