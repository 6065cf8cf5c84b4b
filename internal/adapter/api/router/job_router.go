package router

import (
	"github.com/labstack/echo/v4"

	"changas/internal/adapter/api/handler"
)

func SetupJobRouter(v1 *echo.Group) {
	jobHandler := handler.GetJobHandler()

	jobs := v1.Group("/jobs")
	jobs.GET("", jobHandler.ListJobs)
	jobs.GET("/:id", jobHandler.GetJob)
	jobs.POST("/:id/start", jobHandler.StartJob)
	jobs.POST("/:id/approve", jobHandler.ApproveJob)
	jobs.POST("/:id/cancel", jobHandler.CancelJob)
}
