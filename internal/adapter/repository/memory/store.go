package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/pkg/errors"
)

// Store keeps every entity in process memory. It backs local development
// (STORAGE_DRIVER=memory) and usecase tests. A single lock serialises atomic
// units, which gives the same single-writer outcome as a Firestore transaction.
type Store struct {
	mu           sync.RWMutex
	offers       map[string]entity.Offer
	jobs         map[string]entity.Job
	transactions map[string]entity.Transaction
	logs         []entity.StateLog
	chats        map[string]entity.Chat
	messages     map[string]entity.Message
	lastUpdate   time.Time
}

var _ repository.UnitOfWork = (*Store)(nil)
var _ repository.StateLogRepository = (*Store)(nil)
var _ repository.OfferRepository = (*OfferStore)(nil)
var _ repository.JobRepository = (*JobStore)(nil)
var _ repository.TransactionRepository = (*TransactionStore)(nil)
var _ repository.ChatRepository = (*ChatStore)(nil)

func New() *Store {
	return &Store{
		offers:       make(map[string]entity.Offer),
		jobs:         make(map[string]entity.Job),
		transactions: make(map[string]entity.Transaction),
		chats:        make(map[string]entity.Chat),
		messages:     make(map[string]entity.Message),
	}
}

func messageKey(chatID, messageID string) string {
	return chatID + "/" + messageID
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memoryTx struct {
	store  *Store
	writes []func()
	wrote  bool
}

func (t *memoryTx) read() error {
	if t.wrote {
		return errors.Internal("read after write inside transaction", nil)
	}
	return nil
}

func (t *memoryTx) write(fn func()) {
	t.wrote = true
	t.writes = append(t.writes, fn)
}

func (t *memoryTx) commit() {
	for _, w := range t.writes {
		w()
	}
}

func (t *memoryTx) GetOffer(id string) (*entity.Offer, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	o, ok := t.store.offers[id]
	if !ok {
		return nil, errors.NotFound("Offer", nil)
	}
	return &o, nil
}

func (t *memoryTx) GetJob(id string) (*entity.Job, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	j, ok := t.store.jobs[id]
	if !ok {
		return nil, errors.NotFound("Job", nil)
	}
	return &j, nil
}

func (t *memoryTx) GetTransaction(id string) (*entity.Transaction, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	tr, ok := t.store.transactions[id]
	if !ok {
		return nil, errors.NotFound("Transaction", nil)
	}
	return &tr, nil
}

func (t *memoryTx) ActiveOffer(chatID string, now time.Time) (*entity.Offer, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	for _, o := range t.store.offers {
		if o.ChatID == chatID && o.IsActive(now) {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) CreateOffer(offer *entity.Offer) error {
	if _, exists := t.store.offers[offer.ID]; exists {
		return errors.Conflict("offer already exists", nil)
	}
	o := *offer
	t.write(func() { t.store.offers[o.ID] = o })
	return nil
}

func (t *memoryTx) UpdateOffer(offer *entity.Offer) error {
	o := *offer
	t.write(func() { t.store.offers[o.ID] = o })
	return nil
}

func (t *memoryTx) CreateJob(job *entity.Job) error {
	if _, exists := t.store.jobs[job.ID]; exists {
		return errors.Conflict("job already exists", nil)
	}
	j := *job
	t.write(func() { t.store.jobs[j.ID] = j })
	return nil
}

func (t *memoryTx) UpdateJob(job *entity.Job) error {
	j := *job
	t.write(func() { t.store.jobs[j.ID] = j })
	return nil
}

func (t *memoryTx) CreateTransaction(tr *entity.Transaction) error {
	if _, exists := t.store.transactions[tr.ID]; exists {
		return errors.Conflict("transaction already exists", nil)
	}
	c := *tr
	t.write(func() { t.store.transactions[c.ID] = c })
	return nil
}

func (t *memoryTx) UpdateTransaction(tr *entity.Transaction) error {
	c := *tr
	t.write(func() { t.store.transactions[c.ID] = c })
	return nil
}

func (t *memoryTx) AppendLog(log *entity.StateLog) error {
	l := *log
	t.write(func() { t.store.logs = append(t.store.logs, l) })
	return nil
}

func (s *Store) Offers() *OfferStore {
	return &OfferStore{s}
}

type OfferStore struct {
	s *Store
}

func (r *OfferStore) GetByID(ctx context.Context, id string) (*entity.Offer, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, errors.NotFound("Offer", nil)
	}
	return &o, nil
}

func (r *OfferStore) ListByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Offer, int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*entity.Offer
	for _, o := range s.offers {
		if o.ChatID == chatID {
			o := o
			all = append(all, &o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	return paginate(all, limit, offset), int64(len(all)), nil
}

func (r *OfferStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Offer, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*entity.Offer
	for _, o := range s.offers {
		if o.State == entity.OfferStateOffered && o.IsExpired(now) {
			o := o
			expired = append(expired, &o)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })

	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
