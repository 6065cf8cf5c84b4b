package repository

import (
	"context"
	"time"

	"changas/internal/domain/entity"
)

// Tx is the view of the store inside one atomic unit. Reads observe the
// committed state at the start of the unit and must happen before any write;
// writes become visible together when the unit commits.
type Tx interface {
	GetOffer(id string) (*entity.Offer, error)
	GetJob(id string) (*entity.Job, error)
	GetTransaction(id string) (*entity.Transaction, error)
	// ActiveOffer returns the OFFERED, unexpired offer of a chat, or nil.
	ActiveOffer(chatID string, now time.Time) (*entity.Offer, error)

	CreateOffer(offer *entity.Offer) error
	UpdateOffer(offer *entity.Offer) error
	CreateJob(job *entity.Job) error
	UpdateJob(job *entity.Job) error
	CreateTransaction(tx *entity.Transaction) error
	UpdateTransaction(tx *entity.Transaction) error
	AppendLog(log *entity.StateLog) error
}

// UnitOfWork runs fn atomically. When fn returns an error nothing it wrote is
// kept. Implementations may run fn more than once on contention.
type UnitOfWork interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
