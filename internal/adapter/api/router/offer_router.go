package router

import (
	"github.com/labstack/echo/v4"

	"changas/internal/adapter/api/handler"
)

func SetupOfferRouter(v1 *echo.Group) {
	offerHandler := handler.GetOfferHandler()

	v1.POST("/chats/:chatId/offers", offerHandler.CreateOffer)
	v1.GET("/chats/:chatId/offers", offerHandler.ListChatOffers)

	offers := v1.Group("/offers")
	offers.GET("/:id", offerHandler.GetOffer)
	offers.POST("/:id/accept", offerHandler.AcceptOffer)
	offers.POST("/:id/reject", offerHandler.RejectOffer)
}
