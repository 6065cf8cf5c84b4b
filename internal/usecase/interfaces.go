package usecase

import (
	"context"
	"time"

	"changas/internal/domain/entity"
)

// TokenVerifier resolves a Firebase ID token to the caller's uid.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// InfractionNotifier reports a censored message to the account-standing
// service, which owns the infraction counters and the ban decision.
type InfractionNotifier interface {
	Notify(ctx context.Context, userID string, reasons entity.CensorReasons) (*entity.InfractionResult, error)
}

const (
	EventOfferUpdate       = "offer_update"
	EventJobUpdate         = "job_update"
	EventTransactionUpdate = "transaction_update"
	EventMessageCensored   = "message_censored"
)

type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventPublisher pushes state changes to connected users. Delivery is best
// effort.
type EventPublisher interface {
	PublishToUsers(userIDs []string, event Event)
}

type nopPublisher struct{}

func (nopPublisher) PublishToUsers([]string, Event) {}
