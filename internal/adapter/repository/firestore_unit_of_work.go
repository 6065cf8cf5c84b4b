package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/pkg/errors"
)

const (
	offersCollection       = "offers"
	jobsCollection         = "jobs"
	transactionsCollection = "transactions"
	stateLogsCollection    = "state_logs"
)

type firestoreUnitOfWork struct {
	client *firestore.Client
}

func NewFirestoreUnitOfWork(client *firestore.Client) repository.UnitOfWork {
	return &firestoreUnitOfWork{
		client: client,
	}
}

// RunTransaction maps the atomic unit onto a Firestore transaction. Firestore
// re-runs fn on contention, so a concurrent transition on the same document
// observes the committed state on retry.
func (u *firestoreUnitOfWork) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return u.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{client: u.client, tx: ftx})
	})
}

type firestoreTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *firestoreTx) get(collection, id, resource string, dst interface{}) error {
	doc, err := t.tx.Get(t.client.Collection(collection).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound(resource, err)
		}
		return err
	}
	if err := doc.DataTo(dst); err != nil {
		return errors.Internal("Failed to parse "+collection+" data", err)
	}
	return nil
}

func (t *firestoreTx) GetOffer(id string) (*entity.Offer, error) {
	var offer entity.Offer
	if err := t.get(offersCollection, id, "Offer", &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

func (t *firestoreTx) GetJob(id string) (*entity.Job, error) {
	var job entity.Job
	if err := t.get(jobsCollection, id, "Job", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (t *firestoreTx) GetTransaction(id string) (*entity.Transaction, error) {
	var transaction entity.Transaction
	if err := t.get(transactionsCollection, id, "Transaction", &transaction); err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (t *firestoreTx) ActiveOffer(chatID string, now time.Time) (*entity.Offer, error) {
	query := t.client.Collection(offersCollection).
		Where("chatId", "==", chatID).
		Where("state", "==", string(entity.OfferStateOffered))

	iter := t.tx.Documents(query)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		var offer entity.Offer
		if err := doc.DataTo(&offer); err != nil {
			return nil, errors.Internal("Failed to parse offer data", err)
		}
		if offer.IsActive(now) {
			return &offer, nil
		}
	}
}

func (t *firestoreTx) CreateOffer(offer *entity.Offer) error {
	return t.tx.Create(t.client.Collection(offersCollection).Doc(offer.ID), offer)
}

func (t *firestoreTx) UpdateOffer(offer *entity.Offer) error {
	return t.tx.Set(t.client.Collection(offersCollection).Doc(offer.ID), offer)
}

func (t *firestoreTx) CreateJob(job *entity.Job) error {
	return t.tx.Create(t.client.Collection(jobsCollection).Doc(job.ID), job)
}

func (t *firestoreTx) UpdateJob(job *entity.Job) error {
	return t.tx.Set(t.client.Collection(jobsCollection).Doc(job.ID), job)
}

func (t *firestoreTx) CreateTransaction(transaction *entity.Transaction) error {
	return t.tx.Create(t.client.Collection(transactionsCollection).Doc(transaction.ID), transaction)
}

func (t *firestoreTx) UpdateTransaction(transaction *entity.Transaction) error {
	return t.tx.Set(t.client.Collection(transactionsCollection).Doc(transaction.ID), transaction)
}

func (t *firestoreTx) AppendLog(log *entity.StateLog) error {
	return t.tx.Create(t.client.Collection(stateLogsCollection).Doc(log.ID), log)
}
