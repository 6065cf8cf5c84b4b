package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/internal/domain/service"
	"changas/pkg/errors"
	"changas/pkg/logger"
)

// EscrowUseCase drives the escrow transaction paired with every job: capture,
// release to the professional, refund to the client, and cancellation.
type EscrowUseCase struct {
	uow       repository.UnitOfWork
	txRepo    repository.TransactionRepository
	logRepo   repository.StateLogRepository
	payments  service.PaymentGatewayService
	publisher EventPublisher

	now func() time.Time
}

func NewEscrowUseCase(
	uow repository.UnitOfWork,
	txRepo repository.TransactionRepository,
	logRepo repository.StateLogRepository,
	payments service.PaymentGatewayService,
	publisher EventPublisher,
) *EscrowUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &EscrowUseCase{
		uow:       uow,
		txRepo:    txRepo,
		logRepo:   logRepo,
		payments:  payments,
		publisher: publisher,
		now:       time.Now,
	}
}

type EscrowResult struct {
	Transaction *entity.Transaction `json:"transaction"`
	Job         *entity.Job         `json:"job,omitempty"`
}

func (uc *EscrowUseCase) GetTransaction(ctx context.Context, userID, transactionID string) (*entity.Transaction, error) {
	tr, err := uc.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tr.ClientID != userID && tr.ProfessionalID != userID {
		return nil, errors.Forbidden("You are not a party to this transaction", nil)
	}
	return tr, nil
}

// ListLogs returns the audit trail of a transaction and of its job.
func (uc *EscrowUseCase) ListLogs(ctx context.Context, userID, transactionID string) ([]*entity.StateLog, error) {
	tr, err := uc.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}

	logs, err := uc.logRepo.ListByEntity(ctx, entity.EntityTransaction, tr.ID)
	if err != nil {
		return nil, err
	}
	jobLogs, err := uc.logRepo.ListByEntity(ctx, entity.EntityJob, tr.JobID)
	if err != nil {
		return nil, err
	}
	return append(logs, jobLogs...), nil
}

// MarkPaid records the provider capture of a PENDING transaction and starts
// its job if the job is still PENDING. A repeated callback with the same
// provider payment id is a no-op and reports changed=false.
func (uc *EscrowUseCase) MarkPaid(ctx context.Context, transactionID, providerPaymentID string) (*EscrowResult, bool, error) {
	var result EscrowResult
	var changed bool

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()
		set := newTransitionSet(entity.SystemActor, now)

		tr, err := tx.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		job, err := tx.GetJob(tr.JobID)
		if err != nil {
			return err
		}

		from := tr.State
		changed, err = tr.MarkPaid(providerPaymentID, now)
		if err != nil || !changed {
			result = EscrowResult{Transaction: tr, Job: job}
			return err
		}
		set.add(func(tx repository.Tx) error { return tx.UpdateTransaction(tr) },
			entity.EntityTransaction, tr.ID, string(from), string(tr.State), "payment "+providerPaymentID)

		if job.State == entity.JobStatePending {
			if err := job.Start(now); err != nil {
				return err
			}
			set.add(func(tx repository.Tx) error { return tx.UpdateJob(job) },
				entity.EntityJob, job.ID, string(entity.JobStatePending), string(job.State), "payment captured")
		}

		result = EscrowResult{Transaction: tr, Job: job}
		return set.apply(tx)
	})
	observe(entity.EntityTransaction, "mark_paid", err)
	if err != nil {
		return nil, false, err
	}

	if changed {
		logger.Info("Transaction %s paid with provider payment %s", transactionID, providerPaymentID)
		uc.publishResult(&result)
	}
	return &result, changed, nil
}

// Release pays the held funds out to the professional. Only the client can
// release.
func (uc *EscrowUseCase) Release(ctx context.Context, clientID, transactionID string) (*entity.Transaction, error) {
	var tr *entity.Transaction

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()

		var err error
		tr, err = tx.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		if tr.ClientID != clientID {
			return errors.Forbidden("Only the client can release funds", nil)
		}

		from := tr.State
		if err := tr.Release(now); err != nil {
			return err
		}

		set := newTransitionSet(clientID, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateTransaction(tr) },
			entity.EntityTransaction, tr.ID, string(from), string(tr.State), "")
		return set.apply(tx)
	})
	observe(entity.EntityTransaction, "release", err)
	if err != nil {
		return nil, err
	}

	uc.publishTransaction(tr)
	return tr, nil
}

// Refund returns the held funds to the client and cancels the job if it is
// still open.
func (uc *EscrowUseCase) Refund(ctx context.Context, clientID, transactionID, reason string) (*EscrowResult, error) {
	return uc.closeWithJob(ctx, clientID, transactionID, "refund", func(tr *entity.Transaction, now time.Time) error {
		return tr.Refund(reason, now)
	}, "refunded: "+reason)
}

// Cancel abandons a transaction that was never paid, cancelling its job.
func (uc *EscrowUseCase) Cancel(ctx context.Context, clientID, transactionID string) (*EscrowResult, error) {
	return uc.closeWithJob(ctx, clientID, transactionID, "cancel", func(tr *entity.Transaction, now time.Time) error {
		return tr.Cancel(now)
	}, "payment cancelled")
}

func (uc *EscrowUseCase) closeWithJob(
	ctx context.Context,
	clientID, transactionID, action string,
	transition func(tr *entity.Transaction, now time.Time) error,
	jobReason string,
) (*EscrowResult, error) {
	var result EscrowResult

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()

		tr, err := tx.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		if tr.ClientID != clientID {
			return errors.Forbidden(fmt.Sprintf("Only the client can %s this transaction", action), nil)
		}
		job, err := tx.GetJob(tr.JobID)
		if err != nil {
			return err
		}

		from := tr.State
		if err := transition(tr, now); err != nil {
			return err
		}

		set := newTransitionSet(clientID, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateTransaction(tr) },
			entity.EntityTransaction, tr.ID, string(from), string(tr.State), tr.RefundReason)

		if !job.IsTerminal() {
			jobFrom := job.State
			if err := job.Cancel(jobReason, now); err != nil {
				return err
			}
			set.add(func(tx repository.Tx) error { return tx.UpdateJob(job) },
				entity.EntityJob, job.ID, string(jobFrom), string(job.State), jobReason)
		}

		result = EscrowResult{Transaction: tr, Job: job}
		return set.apply(tx)
	})
	observe(entity.EntityTransaction, action, err)
	if err != nil {
		return nil, err
	}

	uc.publishResult(&result)
	return &result, nil
}

// Checkout creates (or recreates) the provider checkout for a PENDING
// transaction and stores the redirect URL on it.
func (uc *EscrowUseCase) Checkout(ctx context.Context, clientID, transactionID string) (*entity.Transaction, error) {
	tr, err := uc.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tr.ClientID != clientID {
		return nil, errors.Forbidden("Only the client can pay this transaction", nil)
	}
	if tr.State != entity.TransactionStatePending {
		return nil, errors.InvalidTransition(entity.EntityTransaction, string(tr.State), "checkout")
	}

	return uc.createCheckout(ctx, tr, "Trabajo "+tr.JobID)
}

func (uc *EscrowUseCase) createCheckout(ctx context.Context, tr *entity.Transaction, title string) (*entity.Transaction, error) {
	if uc.payments == nil {
		return nil, errors.ExternalService("payment gateway", fmt.Errorf("not configured"))
	}

	checkout, err := uc.payments.CreateCheckout(ctx, service.CheckoutRequest{
		ExternalReference: tr.ID,
		Title:             title,
		Amount:            tr.Amount,
		Currency:          tr.Currency,
		PayerID:           tr.ClientID,
	})
	if err != nil {
		return nil, err
	}

	var updated *entity.Transaction
	err = uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.GetTransaction(tr.ID)
		if err != nil {
			return err
		}
		// Paid in the meantime; the checkout is no longer relevant.
		if current.State != entity.TransactionStatePending {
			updated = current
			return nil
		}
		current.CheckoutID = checkout.CheckoutID
		current.CheckoutURL = checkout.RedirectURL
		current.UpdatedAt = uc.now().UTC()
		updated = current
		return tx.UpdateTransaction(current)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// HandleProviderNotification processes a MercadoPago webhook. Only approved
// payments move a transaction; anything else is acknowledged and ignored.
func (uc *EscrowUseCase) HandleProviderNotification(ctx context.Context, n ProviderNotification) error {
	if uc.payments == nil {
		return errors.ExternalService("payment gateway", fmt.Errorf("not configured"))
	}
	if err := uc.payments.VerifyNotification(n.Signature, n.RequestID, n.DataID); err != nil {
		return err
	}
	if n.Topic != "payment" || n.DataID == "" {
		logger.Debug("Ignoring provider notification of type %q", n.Topic)
		return nil
	}

	payment, err := uc.payments.GetPayment(ctx, n.DataID)
	if err != nil {
		return err
	}
	if !payment.Approved {
		logger.Info("Payment %s for transaction %s is %s", payment.PaymentID, payment.ExternalReference, payment.Status)
		return nil
	}

	tr, err := uc.txRepo.GetByID(ctx, payment.ExternalReference)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			logger.Warn("Payment %s references unknown transaction %q", payment.PaymentID, payment.ExternalReference)
			return nil
		}
		return err
	}
	if !capturedMatches(tr, payment) {
		logger.Warn("Payment %s captured %.2f %s but transaction %s expects %.2f %s, not marking paid",
			payment.PaymentID, payment.Amount, payment.Currency, tr.ID, tr.Amount, tr.Currency)
		return nil
	}

	_, _, err = uc.MarkPaid(ctx, tr.ID, payment.PaymentID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			logger.Warn("Payment %s references unknown transaction %q", payment.PaymentID, payment.ExternalReference)
			return nil
		}
		if errors.Is(err, errors.CodeInvalidTransition) {
			logger.Warn("Payment %s arrived for transaction %s in a closed state: %v", payment.PaymentID, payment.ExternalReference, err)
			return nil
		}
		return err
	}
	return nil
}

// capturedMatches reports whether the provider captured exactly the held
// amount in the transaction's currency.
func capturedMatches(tr *entity.Transaction, payment *service.PaymentStatus) bool {
	if !strings.EqualFold(payment.Currency, tr.Currency) {
		return false
	}
	return math.Abs(payment.Amount-tr.Amount) < 0.005
}

type ProviderNotification struct {
	Topic     string
	DataID    string
	Signature string
	RequestID string
}

func (uc *EscrowUseCase) publishTransaction(tr *entity.Transaction) {
	uc.publisher.PublishToUsers(participants(tr.ClientID, tr.ProfessionalID), Event{
		Type:      EventTransactionUpdate,
		Data:      tr,
		Timestamp: uc.now().UTC(),
	})
}

func (uc *EscrowUseCase) publishResult(r *EscrowResult) {
	uc.publishTransaction(r.Transaction)
	if r.Job != nil {
		uc.publisher.PublishToUsers(participants(r.Job.ClientID, r.Job.ProfessionalID), Event{
			Type:      EventJobUpdate,
			Data:      r.Job,
			Timestamp: uc.now().UTC(),
		})
	}
}
