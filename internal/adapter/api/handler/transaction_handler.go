package handler

import (
	"github.com/labstack/echo/v4"

	"changas/internal/usecase"
	"changas/pkg/errors"
	"changas/pkg/response"
)

type TransactionHandler struct {
	escrowUseCase *usecase.EscrowUseCase
}

func NewTransactionHandler(escrowUseCase *usecase.EscrowUseCase) *TransactionHandler {
	return &TransactionHandler{
		escrowUseCase: escrowUseCase,
	}
}

type refundTransactionRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	transaction, err := h.escrowUseCase.GetTransaction(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, transaction)
}

// GetTransactionLogs returns the audit trail of the transaction and its job.
func (h *TransactionHandler) GetTransactionLogs(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	logs, err := h.escrowUseCase.ListLogs(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, logs)
}

// Checkout requests a new payment link for a PENDING transaction.
func (h *TransactionHandler) Checkout(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	transaction, err := h.escrowUseCase.Checkout(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, transaction)
}

func (h *TransactionHandler) Release(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	transaction, err := h.escrowUseCase.Release(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, transaction)
}

func (h *TransactionHandler) Refund(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	var req refundTransactionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.escrowUseCase.Refund(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}

func (h *TransactionHandler) Cancel(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	result, err := h.escrowUseCase.Cancel(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}
