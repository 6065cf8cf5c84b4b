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

type firestoreJobRepository struct {
	client *firestore.Client
}

func NewFirestoreJobRepository(client *firestore.Client) repository.JobRepository {
	return &firestoreJobRepository{
		client: client,
	}
}

func (r *firestoreJobRepository) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	doc, err := r.client.Collection(jobsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Job", err)
		}
		return nil, errors.Internal("Failed to get job", err)
	}

	var job entity.Job
	if err := doc.DataTo(&job); err != nil {
		return nil, errors.Internal("Failed to parse job data", err)
	}

	return &job, nil
}

func (r *firestoreJobRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Job, int64, error) {
	query := r.client.Collection(jobsCollection).
		WhereEntity(firestore.OrFilter{
			Filters: []firestore.EntityFilter{
				firestore.PropertyFilter{Path: "clientId", Operator: "==", Value: userID},
				firestore.PropertyFilter{Path: "professionalId", Operator: "==", Value: userID},
			},
		}).
		OrderBy("createdAt", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count jobs", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var jobs []*entity.Job
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate jobs", err)
		}

		var job entity.Job
		if err := doc.DataTo(&job); err != nil {
			return nil, 0, errors.Internal("Failed to parse job data", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, total, nil
}
