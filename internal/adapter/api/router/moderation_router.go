package router

import (
	"github.com/labstack/echo/v4"

	"changas/internal/adapter/api/handler"
	"changas/internal/adapter/api/middleware"
)

func SetupModerationRouter(e *echo.Echo, moderationHandler *handler.ModerationHandler, apiKey string) {
	internal := e.Group("/internal", middleware.APIKey(apiKey))
	internal.POST("/moderation/events", moderationHandler.SubmitEvent)
}
