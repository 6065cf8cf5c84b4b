package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	storageDriver string
	checks        map[string]HealthCheck
}

func NewHealthHandler(storageDriver string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		storageDriver: storageDriver,
		checks:        checks,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "Server is running",
		"storage": h.storageDriver,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// CheckDependencies runs every registered check with a short deadline.
func (h *HealthHandler) CheckDependencies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	return c.JSON(status, results)
}
