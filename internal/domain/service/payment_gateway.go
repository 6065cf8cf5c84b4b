package service

import "context"

// CheckoutRequest asks the provider for a hosted checkout for one escrow transaction.
type CheckoutRequest struct {
	ExternalReference string
	Title             string
	Amount            float64
	Currency          string
	PayerID           string
}

type CheckoutResponse struct {
	CheckoutID  string
	RedirectURL string
}

// PaymentStatus is the provider's view of a payment.
type PaymentStatus struct {
	PaymentID         string
	ExternalReference string
	Status            string
	Approved          bool
	Amount            float64
	Currency          string
}

// PaymentGatewayService interface for payment operations
type PaymentGatewayService interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentStatus, error)
	VerifyNotification(signature, requestID, dataID string) error
}
