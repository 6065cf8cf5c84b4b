package handler

import (
	"github.com/labstack/echo/v4"

	"changas/internal/usecase"
	"changas/pkg/errors"
	"changas/pkg/response"
	"changas/pkg/utils"
)

type JobHandler struct {
	negotiationUseCase *usecase.NegotiationUseCase
}

func NewJobHandler(negotiationUseCase *usecase.NegotiationUseCase) *JobHandler {
	return &JobHandler{
		negotiationUseCase: negotiationUseCase,
	}
}

type CancelJobRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *JobHandler) ListJobs(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	pagination := utils.GetPaginationParams(c)
	jobs, total, err := h.negotiationUseCase.ListJobs(c.Request().Context(), userID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, jobs, total, pagination.Page, pagination.PageSize)
}

func (h *JobHandler) GetJob(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	job, err := h.negotiationUseCase.GetJob(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, job)
}

func (h *JobHandler) StartJob(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	job, err := h.negotiationUseCase.StartJob(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, job)
}

func (h *JobHandler) ApproveJob(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	job, err := h.negotiationUseCase.ApproveJob(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, job)
}

func (h *JobHandler) CancelJob(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	var req CancelJobRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return response.Error(c, errors.BadRequest("Invalid request body", err))
		}
		if err := c.Validate(&req); err != nil {
			return response.Error(c, err)
		}
	}

	result, err := h.negotiationUseCase.CancelJob(c.Request().Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}
