package memory

import (
	"context"
	"sort"

	"changas/internal/domain/entity"
	"changas/pkg/errors"
)

func (s *Store) Jobs() *JobStore {
	return &JobStore{s}
}

func (s *Store) Transactions() *TransactionStore {
	return &TransactionStore{s}
}

type JobStore struct {
	s *Store
}

func (j *JobStore) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()

	job, ok := j.s.jobs[id]
	if !ok {
		return nil, errors.NotFound("Job", nil)
	}
	return &job, nil
}

func (j *JobStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Job, int64, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()

	var all []*entity.Job
	for _, job := range j.s.jobs {
		if job.ClientID == userID || job.ProfessionalID == userID {
			job := job
			all = append(all, &job)
		}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].CreatedAt.After(all[b].CreatedAt) })

	return paginate(all, limit, offset), int64(len(all)), nil
}

type TransactionStore struct {
	s *Store
}

func (t *TransactionStore) GetByID(ctx context.Context, id string) (*entity.Transaction, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	tr, ok := t.s.transactions[id]
	if !ok {
		return nil, errors.NotFound("Transaction", nil)
	}
	return &tr, nil
}

func (t *TransactionStore) GetByJobID(ctx context.Context, jobID string) (*entity.Transaction, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	for _, tr := range t.s.transactions {
		if tr.JobID == jobID {
			return &tr, nil
		}
	}
	return nil, errors.NotFound("Transaction", nil)
}

func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.StateLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.StateLog
	for _, l := range s.logs {
		if l.EntityType == entityType && l.EntityID == entityID {
			l := l
			out = append(out, &l)
		}
	}
	return out, nil
}
