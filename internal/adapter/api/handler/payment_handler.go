package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"changas/internal/usecase"
	"changas/pkg/errors"
	"changas/pkg/logger"
	"changas/pkg/response"
)

const maxNotificationBody = 64 << 10

type PaymentHandler struct {
	escrowUseCase *usecase.EscrowUseCase
}

func NewPaymentHandler(escrowUseCase *usecase.EscrowUseCase) *PaymentHandler {
	return &PaymentHandler{
		escrowUseCase: escrowUseCase,
	}
}

// MercadoPagoWebhook receives payment notifications. MercadoPago sends the
// topic and resource id either in the JSON body or as query parameters. Any
// non-2xx answer makes the provider redeliver, so only transient failures
// return one.
func (h *PaymentHandler) MercadoPagoWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBody))
	if err != nil {
		return response.Error(c, errors.BadRequest("Invalid notification body", err))
	}

	n := usecase.ProviderNotification{
		Topic:     c.QueryParam("type"),
		DataID:    c.QueryParam("data.id"),
		Signature: c.Request().Header.Get("X-Signature"),
		RequestID: c.Request().Header.Get("X-Request-Id"),
	}
	if len(body) > 0 && gjson.ValidBytes(body) {
		fields := gjson.GetManyBytes(body, "type", "data.id")
		if n.Topic == "" {
			n.Topic = fields[0].String()
		}
		if n.DataID == "" {
			n.DataID = fields[1].String()
		}
	}
	if n.Topic == "" {
		n.Topic = c.QueryParam("topic")
	}
	if n.DataID == "" {
		n.DataID = c.QueryParam("id")
	}

	logger.Info("MercadoPago notification from %s: type=%s data.id=%s", c.RealIP(), n.Topic, n.DataID)

	if err := h.escrowUseCase.HandleProviderNotification(c.Request().Context(), n); err != nil {
		if errors.Is(err, errors.CodeUnauthorized) {
			logger.Warn("MercadoPago notification signature rejected: %v", err)
		} else {
			logger.Error("Failed to process MercadoPago notification %s: %v", n.DataID, err)
		}
		return response.Error(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "OK",
	})
}
