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
	"changas/pkg/logger"
)

type firestoreOfferRepository struct {
	client *firestore.Client
}

func NewFirestoreOfferRepository(client *firestore.Client) repository.OfferRepository {
	return &firestoreOfferRepository{
		client: client,
	}
}

func (r *firestoreOfferRepository) GetByID(ctx context.Context, id string) (*entity.Offer, error) {
	doc, err := r.client.Collection(offersCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Offer", err)
		}
		return nil, errors.Internal("Failed to get offer", err)
	}

	var offer entity.Offer
	if err := doc.DataTo(&offer); err != nil {
		return nil, errors.Internal("Failed to parse offer data", err)
	}

	return &offer, nil
}

func (r *firestoreOfferRepository) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Offer, int64, error) {
	query := r.client.Collection(offersCollection).
		Where("chatId", "==", chatID).
		OrderBy("createdAt", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while counting offers for chat %s: %v", chatID, err)
		return nil, 0, errors.Internal("Failed to count offers", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	offers, err := collectOffers(query.Documents(ctx))
	if err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

func (r *firestoreOfferRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Offer, error) {
	query := r.client.Collection(offersCollection).
		Where("state", "==", string(entity.OfferStateOffered)).
		Where("expiresAt", "<", now).
		OrderBy("expiresAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	return collectOffers(query.Documents(ctx))
}

func collectOffers(iter *firestore.DocumentIterator) ([]*entity.Offer, error) {
	defer iter.Stop()

	var offers []*entity.Offer
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate offers", err)
		}

		var offer entity.Offer
		if err := doc.DataTo(&offer); err != nil {
			return nil, errors.Internal("Failed to parse offer data", err)
		}
		offers = append(offers, &offer)
	}
	return offers, nil
}
