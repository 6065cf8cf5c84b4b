package repository

import (
	"context"

	"changas/internal/domain/entity"
)

type JobRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Job, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Job, int64, error)
}
