package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"changas/internal/usecase"
	"changas/pkg/errors"
	"changas/pkg/response"
)

type AuthMiddleware struct {
	verifier usecase.TokenVerifier
}

func NewAuthMiddleware(verifier usecase.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
		}

		uid, err := m.verifier.VerifyToken(c.Request().Context(), parts[1])
		if err != nil {
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		c.Set("uid", uid)
		return next(c)
	}
}

// GetUIDFromToken verifies a token passed outside the Authorization header,
// as the websocket handshake does.
func (m *AuthMiddleware) GetUIDFromToken(c echo.Context, token string) (string, error) {
	if token == "" {
		return "", errors.Unauthorized("Token is required", nil)
	}
	uid, err := m.verifier.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}
	return uid, nil
}
