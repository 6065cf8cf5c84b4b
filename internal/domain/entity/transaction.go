package entity

import (
	"time"

	"changas/pkg/errors"
)

type TransactionState string

const (
	TransactionStatePending   TransactionState = "PENDING"
	TransactionStatePaid      TransactionState = "PAID"
	TransactionStateReleased  TransactionState = "RELEASED"
	TransactionStateRefunded  TransactionState = "REFUNDED"
	TransactionStateCancelled TransactionState = "CANCELLED"
)

// Transaction is the escrow payment paired with a job. RELEASED and REFUNDED
// are mutually exclusive terminal states.
type Transaction struct {
	ID                string           `json:"id" firestore:"id"`
	JobID             string           `json:"job_id" firestore:"jobId"`
	OfferID           string           `json:"offer_id" firestore:"offerId"`
	ClientID          string           `json:"client_id" firestore:"clientId"`
	ProfessionalID    string           `json:"professional_id" firestore:"professionalId"`
	Amount            float64          `json:"amount" firestore:"amount"`
	Currency          string           `json:"currency" firestore:"currency"`
	State             TransactionState `json:"state" firestore:"state"`
	PaymentProviderID string           `json:"payment_provider_id,omitempty" firestore:"paymentProviderId,omitempty"`
	CheckoutID        string           `json:"checkout_id,omitempty" firestore:"checkoutId,omitempty"`
	CheckoutURL       string           `json:"checkout_url,omitempty" firestore:"checkoutUrl,omitempty"`
	RefundReason      string           `json:"refund_reason,omitempty" firestore:"refundReason,omitempty"`
	CreatedAt         time.Time        `json:"created_at" firestore:"createdAt"`
	UpdatedAt         time.Time        `json:"updated_at" firestore:"updatedAt"`
	PaidAt            *time.Time       `json:"paid_at,omitempty" firestore:"paidAt,omitempty"`
	ReleasedAt        *time.Time       `json:"released_at,omitempty" firestore:"releasedAt,omitempty"`
	RefundedAt        *time.Time       `json:"refunded_at,omitempty" firestore:"refundedAt,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty" firestore:"cancelledAt,omitempty"`
}

func (t *Transaction) IsTerminal() bool {
	switch t.State {
	case TransactionStateReleased, TransactionStateRefunded, TransactionStateCancelled:
		return true
	}
	return false
}

// MarkPaid records the provider capture. A repeated callback carrying the same
// provider payment id reports false without error.
func (t *Transaction) MarkPaid(providerPaymentID string, now time.Time) (bool, error) {
	if providerPaymentID == "" {
		return false, errors.Validation("provider payment id is required")
	}
	if t.State != TransactionStatePending {
		if t.PaymentProviderID == providerPaymentID {
			return false, nil
		}
		return false, errors.InvalidTransition("transaction", string(t.State), "mark paid")
	}
	t.State = TransactionStatePaid
	t.PaymentProviderID = providerPaymentID
	t.PaidAt = &now
	t.UpdatedAt = now
	return true, nil
}

func (t *Transaction) Release(now time.Time) error {
	if t.State != TransactionStatePaid {
		return errors.InvalidTransition("transaction", string(t.State), "release")
	}
	t.State = TransactionStateReleased
	t.ReleasedAt = &now
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) Refund(reason string, now time.Time) error {
	if t.State != TransactionStatePaid {
		return errors.InvalidTransition("transaction", string(t.State), "refund")
	}
	t.State = TransactionStateRefunded
	t.RefundReason = reason
	t.RefundedAt = &now
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) Cancel(now time.Time) error {
	if t.State != TransactionStatePending {
		return errors.InvalidTransition("transaction", string(t.State), "cancel")
	}
	t.State = TransactionStateCancelled
	t.CancelledAt = &now
	t.UpdatedAt = now
	return nil
}
