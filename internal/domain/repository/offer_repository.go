package repository

import (
	"context"
	"time"

	"changas/internal/domain/entity"
)

type OfferRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Offer, error)
	ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Offer, int64, error)
	// ListExpired returns OFFERED offers whose expiry is before now, oldest first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Offer, error)
}
