package repository

import (
	"context"

	"changas/internal/domain/entity"
)

type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Transaction, error)
	GetByJobID(ctx context.Context, jobID string) (*entity.Transaction, error)
}

type StateLogRepository interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.StateLog, error)
}
