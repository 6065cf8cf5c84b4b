package router

import (
	"github.com/labstack/echo/v4"

	"changas/internal/adapter/api/handler"
)

func SetupTransactionRouter(v1 *echo.Group) {
	transactionHandler := handler.GetTransactionHandler()

	transactions := v1.Group("/transactions")
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.GET("/:id/logs", transactionHandler.GetTransactionLogs)
	transactions.POST("/:id/checkout", transactionHandler.Checkout)
	transactions.POST("/:id/release", transactionHandler.Release)
	transactions.POST("/:id/refund", transactionHandler.Refund)
	transactions.POST("/:id/cancel", transactionHandler.Cancel)
}
