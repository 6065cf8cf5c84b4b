package router

import (
	"github.com/labstack/echo/v4"

	"changas/internal/adapter/api/handler"
)

// SetupPaymentRouter exposes the provider webhook. It is authenticated by
// the notification signature, not by a user token.
func SetupPaymentRouter(e *echo.Echo, paymentHandler *handler.PaymentHandler) {
	e.POST("/v1/payments/mercadopago/webhook", paymentHandler.MercadoPagoWebhook)
}
