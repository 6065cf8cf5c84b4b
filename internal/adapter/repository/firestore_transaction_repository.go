package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/pkg/errors"
)

type firestoreTransactionRepository struct {
	client *firestore.Client
}

func NewFirestoreTransactionRepository(client *firestore.Client) repository.TransactionRepository {
	return &firestoreTransactionRepository{
		client: client,
	}
}

func (r *firestoreTransactionRepository) GetByID(ctx context.Context, id string) (*entity.Transaction, error) {
	doc, err := r.client.Collection(transactionsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Transaction", err)
		}
		return nil, errors.Internal("Failed to get transaction", err)
	}

	var transaction entity.Transaction
	if err := doc.DataTo(&transaction); err != nil {
		return nil, errors.Internal("Failed to parse transaction data", err)
	}

	return &transaction, nil
}

func (r *firestoreTransactionRepository) GetByJobID(ctx context.Context, jobID string) (*entity.Transaction, error) {
	iter := r.client.Collection(transactionsCollection).Where("jobId", "==", jobID).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Transaction", nil)
		}
		return nil, errors.Internal("Failed to query transaction by job", err)
	}

	var transaction entity.Transaction
	if err := doc.DataTo(&transaction); err != nil {
		return nil, errors.Internal("Failed to parse transaction data", err)
	}

	return &transaction, nil
}

type firestoreStateLogRepository struct {
	client *firestore.Client
}

func NewFirestoreStateLogRepository(client *firestore.Client) repository.StateLogRepository {
	return &firestoreStateLogRepository{
		client: client,
	}
}

func (r *firestoreStateLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.StateLog, error) {
	iter := r.client.Collection(stateLogsCollection).
		Where("entityType", "==", entityType).
		Where("entityId", "==", entityID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var logs []*entity.StateLog
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate state logs", err)
		}

		var log entity.StateLog
		if err := doc.DataTo(&log); err != nil {
			return nil, errors.Internal("Failed to parse state log data", err)
		}
		logs = append(logs, &log)
	}

	return logs, nil
}
