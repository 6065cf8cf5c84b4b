package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"changas/internal/usecase"
	"changas/pkg/errors"
	"changas/pkg/response"
)

type messageSubmitter interface {
	Submit(ctx context.Context, ev usecase.MessageEvent) error
}

// ModerationHandler accepts message events pushed by other services, for
// deployments where the Firestore listener is disabled.
type ModerationHandler struct {
	dispatcher messageSubmitter
}

func NewModerationHandler(dispatcher messageSubmitter) *ModerationHandler {
	return &ModerationHandler{
		dispatcher: dispatcher,
	}
}

type messageEventRequest struct {
	ChatID    string `json:"chat_id" validate:"required"`
	MessageID string `json:"message_id" validate:"required"`
	Deleted   bool   `json:"deleted"`
}

// SubmitEvent queues the event and answers 202. The message itself is always
// read from the store so a censorship write is conditioned on the version it
// was computed from.
func (h *ModerationHandler) SubmitEvent(c echo.Context) error {
	var req messageEventRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	err := h.dispatcher.Submit(c.Request().Context(), usecase.MessageEvent{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		Deleted:   req.Deleted,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "QUEUED",
	})
}
