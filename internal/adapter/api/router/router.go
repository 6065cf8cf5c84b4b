package router

import (
	"github.com/labstack/echo/v4"

	"changas/internal/adapter/api/handler"
	"changas/internal/adapter/api/middleware"
	"changas/internal/infrastructure/metrics"
	"changas/internal/infrastructure/ratelimit"
)

type Handlers struct {
	Health     *handler.HealthHandler
	Payment    *handler.PaymentHandler
	Moderation *handler.ModerationHandler
	WebSocket  *handler.WebSocketHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter, internalAPIKey string) {
	v1 := e.Group("/v1", authMiddleware.Authenticate, middleware.RateLimit(limiter))

	SetupOfferRouter(v1)
	SetupJobRouter(v1)
	SetupTransactionRouter(v1)
	SetupPaymentRouter(e, h.Payment)
	SetupModerationRouter(e, h.Moderation, internalAPIKey)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupHealthRouter(e, h.Health)

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}
