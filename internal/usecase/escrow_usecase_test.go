package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changas/internal/domain/entity"
	"changas/internal/domain/service"
	"changas/pkg/errors"
)

func acceptedTransaction(t *testing.T, f *fixture) *AcceptOfferResult {
	t.Helper()
	res, err := f.negotiation.AcceptOffer(context.Background(), testClientID, f.createOffer(t, 5000).ID)
	require.NoError(t, err)
	return res
}

func approvedPayment(id, reference string, amount float64, currency string) *service.PaymentStatus {
	return &service.PaymentStatus{
		PaymentID:         id,
		ExternalReference: reference,
		Status:            "approved",
		Approved:          true,
		Amount:            amount,
		Currency:          currency,
	}
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := acceptedTransaction(t, f)

	_, _, err := f.escrow.MarkPaid(ctx, res.Transaction.ID, "")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, _, err = f.escrow.MarkPaid(ctx, res.Transaction.ID, "mp_1")
	require.NoError(t, err)

	_, _, err = f.escrow.MarkPaid(ctx, res.Transaction.ID, "mp_2")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestReleaseThenRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := acceptedTransaction(t, f)

	_, err := f.escrow.Release(ctx, testClientID, res.Transaction.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition), "pending funds cannot be released")

	_, _, err = f.escrow.MarkPaid(ctx, res.Transaction.ID, "mp_1")
	require.NoError(t, err)

	_, err = f.escrow.Release(ctx, testProfessional, res.Transaction.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, err = f.escrow.Release(ctx, testClientID, res.Transaction.ID)
	require.NoError(t, err)

	_, err = f.escrow.Refund(ctx, testClientID, res.Transaction.ID, "late")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	tr, err := f.escrow.GetTransaction(ctx, testClientID, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionStateReleased, tr.State)
}

func TestRefundCancelsJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := acceptedTransaction(t, f)
	_, _, err := f.escrow.MarkPaid(ctx, res.Transaction.ID, "mp_1")
	require.NoError(t, err)

	out, err := f.escrow.Refund(ctx, testClientID, res.Transaction.ID, "trabajo mal hecho")
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionStateRefunded, out.Transaction.State)
	assert.Equal(t, "trabajo mal hecho", out.Transaction.RefundReason)
	assert.Equal(t, entity.JobStateCancelled, out.Job.State)

	_, err = f.escrow.Release(ctx, testClientID, res.Transaction.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestCancelUnpaidTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := acceptedTransaction(t, f)

	out, err := f.escrow.Cancel(ctx, testClientID, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionStateCancelled, out.Transaction.State)
	assert.Equal(t, entity.JobStateCancelled, out.Job.State)

	_, _, err = f.escrow.MarkPaid(ctx, res.Transaction.ID, "mp_1")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestCheckoutRequiresPendingTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := acceptedTransaction(t, f)
	_, _, err := f.escrow.MarkPaid(ctx, res.Transaction.ID, "mp_1")
	require.NoError(t, err)

	_, err = f.escrow.Checkout(ctx, testClientID, res.Transaction.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestHandleProviderNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("approved payment marks the transaction paid", func(t *testing.T) {
		f := newFixture(t)
		res := acceptedTransaction(t, f)
		f.payments.payments["123"] = approvedPayment("123", res.Transaction.ID, 5000, "ARS")

		n := ProviderNotification{Topic: "payment", DataID: "123"}
		require.NoError(t, f.escrow.HandleProviderNotification(ctx, n))
		require.NoError(t, f.escrow.HandleProviderNotification(ctx, n))

		tr, err := f.escrow.GetTransaction(ctx, testClientID, res.Transaction.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TransactionStatePaid, tr.State)
		assert.Equal(t, "123", tr.PaymentProviderID)
	})

	t.Run("pending payment is acknowledged", func(t *testing.T) {
		f := newFixture(t)
		res := acceptedTransaction(t, f)
		f.payments.payments["124"] = &service.PaymentStatus{PaymentID: "124", ExternalReference: res.Transaction.ID, Status: "in_process"}

		require.NoError(t, f.escrow.HandleProviderNotification(ctx, ProviderNotification{Topic: "payment", DataID: "124"}))

		tr, err := f.escrow.GetTransaction(ctx, testClientID, res.Transaction.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TransactionStatePending, tr.State)
	})

	t.Run("unknown transaction is ignored", func(t *testing.T) {
		f := newFixture(t)
		f.payments.payments["125"] = approvedPayment("125", "nope", 5000, "ARS")

		assert.NoError(t, f.escrow.HandleProviderNotification(ctx, ProviderNotification{Topic: "payment", DataID: "125"}))
	})

	t.Run("captured amount or currency mismatch is not marked paid", func(t *testing.T) {
		tests := []struct {
			name     string
			amount   float64
			currency string
		}{
			{"amount missing", 0, "ARS"},
			{"short amount", 4999.99, "ARS"},
			{"other currency", 5000, "USD"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				res := acceptedTransaction(t, f)
				f.payments.payments["126"] = approvedPayment("126", res.Transaction.ID, tt.amount, tt.currency)

				require.NoError(t, f.escrow.HandleProviderNotification(ctx, ProviderNotification{Topic: "payment", DataID: "126"}))

				tr, err := f.escrow.GetTransaction(ctx, testClientID, res.Transaction.ID)
				require.NoError(t, err)
				assert.Equal(t, entity.TransactionStatePending, tr.State)
				assert.Empty(t, tr.PaymentProviderID)
			})
		}
	})

	t.Run("currency code case is ignored", func(t *testing.T) {
		f := newFixture(t)
		res := acceptedTransaction(t, f)
		f.payments.payments["127"] = approvedPayment("127", res.Transaction.ID, 5000, "ars")

		require.NoError(t, f.escrow.HandleProviderNotification(ctx, ProviderNotification{Topic: "payment", DataID: "127"}))

		tr, err := f.escrow.GetTransaction(ctx, testClientID, res.Transaction.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TransactionStatePaid, tr.State)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.payments.verifyErr = errors.Unauthorized("webhook signature mismatch", nil)

		err := f.escrow.HandleProviderNotification(ctx, ProviderNotification{Topic: "payment", DataID: "1"})
		assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	})

	t.Run("provider outage surfaces for retry", func(t *testing.T) {
		f := newFixture(t)
		err := f.escrow.HandleProviderNotification(ctx, ProviderNotification{Topic: "payment", DataID: "missing"})
		assert.Error(t, err)
	})
}
