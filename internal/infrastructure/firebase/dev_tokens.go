package firebase

import (
	"context"
	"strings"

	"changas/pkg/errors"
)

const devTokenPrefix = "dev:"

// DevTokenVerifier accepts "dev:<uid>" tokens. It is only wired when the
// server runs in development against the memory store.
type DevTokenVerifier struct{}

func (DevTokenVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	uid, ok := strings.CutPrefix(token, devTokenPrefix)
	if !ok || strings.TrimSpace(uid) == "" {
		return "", errors.Unauthorized("Invalid development token", nil)
	}
	return uid, nil
}
