package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"changas/internal/usecase"
	"changas/pkg/errors"
	"changas/pkg/response"
	"changas/pkg/utils"
)

type OfferHandler struct {
	negotiationUseCase *usecase.NegotiationUseCase
}

func NewOfferHandler(negotiationUseCase *usecase.NegotiationUseCase) *OfferHandler {
	return &OfferHandler{
		negotiationUseCase: negotiationUseCase,
	}
}

type CreateOfferRequest struct {
	Description string     `json:"description" validate:"required,max=2000"`
	Price       float64    `json:"price" validate:"required,gt=0"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateOffer is called by the professional side of a chat.
func (h *OfferHandler) CreateOffer(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	var req CreateOfferRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	offer, err := h.negotiationUseCase.CreateOffer(c.Request().Context(), userID, c.Param("chatId"), usecase.CreateOfferInput{
		Description: req.Description,
		Price:       req.Price,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, offer)
}

func (h *OfferHandler) ListChatOffers(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	pagination := utils.GetPaginationParams(c)
	offers, total, err := h.negotiationUseCase.ListChatOffers(c.Request().Context(), userID, c.Param("chatId"), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, offers, total, pagination.Page, pagination.PageSize)
}

func (h *OfferHandler) GetOffer(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	offer, err := h.negotiationUseCase.GetOffer(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, offer)
}

// AcceptOffer creates the job and its escrow transaction. The response
// carries the checkout URL when the payment provider answered in time.
func (h *OfferHandler) AcceptOffer(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	result, err := h.negotiationUseCase.AcceptOffer(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, result)
}

func (h *OfferHandler) RejectOffer(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return response.Error(c, errors.Unauthorized("User not authenticated", nil))
	}

	offer, err := h.negotiationUseCase.RejectOffer(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, offer)
}
