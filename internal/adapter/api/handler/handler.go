package handler

import (
	"github.com/labstack/echo/v4"

	"changas/internal/usecase"
)

var (
	offerHandler       *OfferHandler
	jobHandler         *JobHandler
	transactionHandler *TransactionHandler
)

func Setup(
	negotiationUseCase *usecase.NegotiationUseCase,
	escrowUseCase *usecase.EscrowUseCase,
) {
	offerHandler = NewOfferHandler(negotiationUseCase)
	jobHandler = NewJobHandler(negotiationUseCase)
	transactionHandler = NewTransactionHandler(escrowUseCase)
}

func GetOfferHandler() *OfferHandler {
	return offerHandler
}

func GetJobHandler() *JobHandler {
	return jobHandler
}

func GetTransactionHandler() *TransactionHandler {
	return transactionHandler
}

func currentUser(c echo.Context) (string, bool) {
	uid, ok := c.Get("uid").(string)
	return uid, ok && uid != ""
}
