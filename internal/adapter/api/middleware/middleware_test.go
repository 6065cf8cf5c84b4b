package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"changas/internal/infrastructure/ratelimit"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	uid, ok := v[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return uid, nil
}

func ok(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(h echo.HandlerFunc, method string, headers map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	_ = h(e.NewContext(req, rec))
	return rec
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(staticVerifier{"good": "client-1"})
	var seen string
	h := m.Authenticate(func(c echo.Context) error {
		seen, _ = c.Get("uid").(string)
		return ok(c)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers[echo.HeaderAuthorization] = tt.header
			}
			rec := serve(h, http.MethodGet, headers)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "client-1", seen)
}

func TestRateLimitOnlyMutations(t *testing.T) {
	h := RateLimit(ratelimit.NewRateLimiter(1, 1))(ok)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, nil).Code)

	rec := serve(h, http.MethodPost, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, nil).Code)
}

func TestAPIKey(t *testing.T) {
	h := APIKey("secret")(ok)

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, map[string]string{"X-API-Key": "nope"}).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, map[string]string{"X-API-Key": "secret"}).Code)

	disabled := APIKey("")(ok)
	assert.Equal(t, http.StatusForbidden, serve(disabled, http.MethodPost, map[string]string{"X-API-Key": ""}).Code)
}
