package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/internal/infrastructure/metrics"
	"changas/pkg/errors"
	"changas/pkg/logger"
)

type NegotiationConfig struct {
	OfferTTL   time.Duration
	Currency   string
	SweepBatch int
}

// NegotiationUseCase owns the offer and job state machines and keeps them
// consistent with the escrow transaction: an accepted offer always has
// exactly one job and one transaction, created in the same atomic unit.
type NegotiationUseCase struct {
	uow       repository.UnitOfWork
	offers    repository.OfferRepository
	jobs      repository.JobRepository
	chats     repository.ChatRepository
	escrow    *EscrowUseCase
	publisher EventPublisher
	cfg       NegotiationConfig

	now   func() time.Time
	newID func() string
}

func NewNegotiationUseCase(
	uow repository.UnitOfWork,
	offers repository.OfferRepository,
	jobs repository.JobRepository,
	chats repository.ChatRepository,
	escrow *EscrowUseCase,
	publisher EventPublisher,
	cfg NegotiationConfig,
) *NegotiationUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = 72 * time.Hour
	}
	if cfg.Currency == "" {
		cfg.Currency = "ARS"
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	return &NegotiationUseCase{
		uow:       uow,
		offers:    offers,
		jobs:      jobs,
		chats:     chats,
		escrow:    escrow,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

type CreateOfferInput struct {
	Description string
	Price       float64
	ExpiresAt   *time.Time
}

func (uc *NegotiationUseCase) CreateOffer(ctx context.Context, professionalID, chatID string, input CreateOfferInput) (*entity.Offer, error) {
	chat, err := uc.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	clientID, err := counterpart(chat, professionalID)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	params := entity.NewOfferParams{
		ID:             uc.newID(),
		ChatID:         chatID,
		ProfessionalID: professionalID,
		ClientID:       clientID,
		Description:    input.Description,
		Price:          input.Price,
		Currency:       uc.cfg.Currency,
	}
	if input.ExpiresAt != nil {
		params.ExpiresAt = input.ExpiresAt.UTC()
	}

	offer, err := entity.NewOffer(params, now, uc.cfg.OfferTTL)
	if err != nil {
		return nil, err
	}

	err = uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		active, err := tx.ActiveOffer(chatID, now)
		if err != nil {
			return err
		}
		if active != nil {
			return errors.Conflict("chat already has an open offer", nil)
		}

		set := newTransitionSet(professionalID, now)
		set.add(func(tx repository.Tx) error { return tx.CreateOffer(offer) },
			entity.EntityOffer, offer.ID, "", string(offer.State), "")
		return set.apply(tx)
	})
	observe(entity.EntityOffer, "create", err)
	if err != nil {
		return nil, err
	}

	logger.Info("Offer %s created in chat %s for %.2f %s", offer.ID, chatID, offer.Price, offer.Currency)
	uc.publishOffer(offer)
	return offer, nil
}

// counterpart returns the client of the chat, requiring that userID is its
// professional.
func counterpart(chat *entity.Chat, professionalID string) (string, error) {
	if !chat.HasParticipant(professionalID) {
		return "", errors.Forbidden("You are not a participant of this chat", nil)
	}
	if chat.ProfessionalID != "" {
		if chat.ProfessionalID != professionalID {
			return "", errors.Forbidden("Only the professional can make offers", nil)
		}
		return chat.ClientID, nil
	}
	for _, p := range chat.ParticipantIDs {
		if p != professionalID {
			return p, nil
		}
	}
	return "", errors.BadRequest("Chat has no client", nil)
}

func (uc *NegotiationUseCase) GetOffer(ctx context.Context, userID, offerID string) (*entity.Offer, error) {
	offer, err := uc.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.ClientID != userID && offer.ProfessionalID != userID {
		return nil, errors.Forbidden("You are not a party to this offer", nil)
	}
	return offer, nil
}

func (uc *NegotiationUseCase) ListChatOffers(ctx context.Context, userID, chatID string, limit, offset int) ([]*entity.Offer, int64, error) {
	chat, err := uc.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, 0, err
	}
	if !chat.HasParticipant(userID) {
		return nil, 0, errors.Forbidden("You are not a participant of this chat", nil)
	}
	return uc.offers.ListByChat(ctx, chatID, limit, offset)
}

type AcceptOfferResult struct {
	Offer       *entity.Offer       `json:"offer"`
	Job         *entity.Job         `json:"job"`
	Transaction *entity.Transaction `json:"transaction"`
	CheckoutURL string              `json:"checkout_url,omitempty"`
}

// AcceptOffer accepts an OFFERED, unexpired offer and creates its PENDING job
// and transaction in the same atomic unit. Of two concurrent accepts exactly
// one succeeds; the other sees the committed state and fails with
// InvalidTransition. The checkout is requested after the commit; if the
// provider is unavailable the client can retry it later.
func (uc *NegotiationUseCase) AcceptOffer(ctx context.Context, clientID, offerID string) (*AcceptOfferResult, error) {
	var result AcceptOfferResult

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()

		offer, err := tx.GetOffer(offerID)
		if err != nil {
			return err
		}
		if offer.ClientID != clientID {
			return errors.Forbidden("Only the client can accept this offer", nil)
		}

		jobID, transactionID := uc.newID(), uc.newID()
		if err := offer.Accept(jobID, now); err != nil {
			return err
		}

		job := &entity.Job{
			ID:             jobID,
			OfferID:        offer.ID,
			ChatID:         offer.ChatID,
			ClientID:       offer.ClientID,
			ProfessionalID: offer.ProfessionalID,
			TransactionID:  transactionID,
			State:          entity.JobStatePending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		transaction := &entity.Transaction{
			ID:             transactionID,
			JobID:          jobID,
			OfferID:        offer.ID,
			ClientID:       offer.ClientID,
			ProfessionalID: offer.ProfessionalID,
			Amount:         offer.Price,
			Currency:       offer.Currency,
			State:          entity.TransactionStatePending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		set := newTransitionSet(clientID, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateOffer(offer) },
			entity.EntityOffer, offer.ID, string(entity.OfferStateOffered), string(offer.State), "")
		set.add(func(tx repository.Tx) error { return tx.CreateJob(job) },
			entity.EntityJob, job.ID, "", string(job.State), "offer "+offer.ID)
		set.add(func(tx repository.Tx) error { return tx.CreateTransaction(transaction) },
			entity.EntityTransaction, transaction.ID, "", string(transaction.State), "offer "+offer.ID)

		result = AcceptOfferResult{Offer: offer, Job: job, Transaction: transaction}
		return set.apply(tx)
	})
	observe(entity.EntityOffer, "accept", err)
	if err != nil {
		return nil, err
	}

	logger.Info("Offer %s accepted, job %s and transaction %s created", offerID, result.Job.ID, result.Transaction.ID)

	if uc.escrow != nil && uc.escrow.payments != nil {
		updated, err := uc.escrow.createCheckout(ctx, result.Transaction, truncate(result.Offer.Description, 120))
		if err != nil {
			logger.LogTransitionError(entity.EntityTransaction, result.Transaction.ID, "create checkout", err)
		} else {
			result.Transaction = updated
			result.CheckoutURL = updated.CheckoutURL
		}
	}

	uc.publishOffer(result.Offer)
	uc.publishJob(result.Job)
	if uc.escrow != nil {
		uc.escrow.publishTransaction(result.Transaction)
	}
	return &result, nil
}

func (uc *NegotiationUseCase) RejectOffer(ctx context.Context, clientID, offerID string) (*entity.Offer, error) {
	var offer *entity.Offer

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()

		var err error
		offer, err = tx.GetOffer(offerID)
		if err != nil {
			return err
		}
		if offer.ClientID != clientID {
			return errors.Forbidden("Only the client can reject this offer", nil)
		}
		if err := offer.Reject(now); err != nil {
			return err
		}

		set := newTransitionSet(clientID, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateOffer(offer) },
			entity.EntityOffer, offer.ID, string(entity.OfferStateOffered), string(offer.State), "")
		return set.apply(tx)
	})
	observe(entity.EntityOffer, "reject", err)
	if err != nil {
		return nil, err
	}

	uc.publishOffer(offer)
	return offer, nil
}

// ExpireOffers moves one batch of overdue OFFERED offers to EXPIRED. Each
// offer is expired in its own atomic unit, so an offer accepted concurrently
// stays accepted and is skipped.
func (uc *NegotiationUseCase) ExpireOffers(ctx context.Context) (int, error) {
	now := uc.now().UTC()

	candidates, err := uc.offers.ListExpired(ctx, now, uc.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range candidates {
		offer, changed, err := uc.expireOffer(ctx, candidate.ID, now)
		if err != nil {
			if errors.Is(err, errors.CodeInvalidTransition) || errors.Is(err, errors.CodeNotFound) {
				continue
			}
			logger.Error("Failed to expire offer %s: %v", candidate.ID, err)
			continue
		}
		if changed {
			expired++
			uc.publishOffer(offer)
		}
	}

	if expired > 0 {
		metrics.AddOffersExpired(expired)
		logger.Info("Expired %d offers", expired)
	}
	return expired, nil
}

func (uc *NegotiationUseCase) expireOffer(ctx context.Context, offerID string, now time.Time) (*entity.Offer, bool, error) {
	var offer *entity.Offer
	var changed bool

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		offer, err = tx.GetOffer(offerID)
		if err != nil {
			return err
		}

		changed, err = offer.Expire(now)
		if err != nil || !changed {
			return err
		}

		set := newTransitionSet(entity.SystemActor, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateOffer(offer) },
			entity.EntityOffer, offer.ID, string(entity.OfferStateOffered), string(offer.State), "expired at "+offer.ExpiresAt.Format(time.RFC3339))
		return set.apply(tx)
	})
	observe(entity.EntityOffer, "expire", err)
	return offer, changed, err
}

func (uc *NegotiationUseCase) GetJob(ctx context.Context, userID, jobID string) (*entity.Job, error) {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != userID && job.ProfessionalID != userID {
		return nil, errors.Forbidden("You are not a party to this job", nil)
	}
	return job, nil
}

func (uc *NegotiationUseCase) ListJobs(ctx context.Context, userID string, limit, offset int) ([]*entity.Job, int64, error) {
	return uc.jobs.ListByUser(ctx, userID, limit, offset)
}

func (uc *NegotiationUseCase) StartJob(ctx context.Context, professionalID, jobID string) (*entity.Job, error) {
	var job *entity.Job

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()

		var err error
		job, err = tx.GetJob(jobID)
		if err != nil {
			return err
		}
		if job.ProfessionalID != professionalID {
			return errors.Forbidden("Only the professional can start this job", nil)
		}

		from := job.State
		if err := job.Start(now); err != nil {
			return err
		}

		set := newTransitionSet(professionalID, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateJob(job) },
			entity.EntityJob, job.ID, string(from), string(job.State), "")
		return set.apply(tx)
	})
	observe(entity.EntityJob, "start", err)
	if err != nil {
		return nil, err
	}

	uc.publishJob(job)
	return job, nil
}

// ApproveJob completes a job whose funds were already released.
func (uc *NegotiationUseCase) ApproveJob(ctx context.Context, clientID, jobID string) (*entity.Job, error) {
	var job *entity.Job

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()

		var err error
		job, err = tx.GetJob(jobID)
		if err != nil {
			return err
		}
		if job.ClientID != clientID {
			return errors.Forbidden("Only the client can approve this job", nil)
		}
		transaction, err := tx.GetTransaction(job.TransactionID)
		if err != nil {
			return err
		}

		from := job.State
		if err := job.Approve(transaction.State, now); err != nil {
			return err
		}

		set := newTransitionSet(clientID, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateJob(job) },
			entity.EntityJob, job.ID, string(from), string(job.State), "")
		return set.apply(tx)
	})
	observe(entity.EntityJob, "approve", err)
	if err != nil {
		return nil, err
	}

	uc.publishJob(job)
	return job, nil
}

type CancelJobResult struct {
	Job         *entity.Job         `json:"job"`
	Transaction *entity.Transaction `json:"transaction"`
}

// CancelJob cancels a PENDING or IN_PROGRESS job and closes its transaction:
// a PAID transaction is refunded, a PENDING one cancelled. A job whose funds
// were already released can no longer be cancelled.
func (uc *NegotiationUseCase) CancelJob(ctx context.Context, userID, jobID, reason string) (*CancelJobResult, error) {
	var result CancelJobResult

	err := uc.uow.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		now := uc.now().UTC()

		job, err := tx.GetJob(jobID)
		if err != nil {
			return err
		}
		if job.ClientID != userID && job.ProfessionalID != userID {
			return errors.Forbidden("You are not a party to this job", nil)
		}
		transaction, err := tx.GetTransaction(job.TransactionID)
		if err != nil {
			return err
		}

		jobFrom, txFrom := job.State, transaction.State
		if err := job.Cancel(reason, now); err != nil {
			return err
		}

		switch transaction.State {
		case entity.TransactionStatePaid:
			err = transaction.Refund("job cancelled: "+reason, now)
		case entity.TransactionStatePending:
			err = transaction.Cancel(now)
		default:
			err = errors.InvalidTransition(entity.EntityJob, string(jobFrom), "cancel while transaction is "+string(transaction.State))
		}
		if err != nil {
			return err
		}

		set := newTransitionSet(userID, now)
		set.add(func(tx repository.Tx) error { return tx.UpdateJob(job) },
			entity.EntityJob, job.ID, string(jobFrom), string(job.State), reason)
		set.add(func(tx repository.Tx) error { return tx.UpdateTransaction(transaction) },
			entity.EntityTransaction, transaction.ID, string(txFrom), string(transaction.State), "job cancelled")

		result = CancelJobResult{Job: job, Transaction: transaction}
		return set.apply(tx)
	})
	observe(entity.EntityJob, "cancel", err)
	if err != nil {
		return nil, err
	}

	uc.publishJob(result.Job)
	if uc.escrow != nil {
		uc.escrow.publishTransaction(result.Transaction)
	}
	return &result, nil
}

func (uc *NegotiationUseCase) publishOffer(offer *entity.Offer) {
	uc.publisher.PublishToUsers(participants(offer.ClientID, offer.ProfessionalID), Event{
		Type:      EventOfferUpdate,
		Data:      offer,
		Timestamp: uc.now().UTC(),
	})
}

func (uc *NegotiationUseCase) publishJob(job *entity.Job) {
	uc.publisher.PublishToUsers(participants(job.ClientID, job.ProfessionalID), Event{
		Type:      EventJobUpdate,
		Data:      job,
		Timestamp: uc.now().UTC(),
	})
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
