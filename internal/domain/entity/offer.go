package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"changas/pkg/errors"
)

type OfferState string

const (
	OfferStateOffered  OfferState = "OFFERED"
	OfferStateAccepted OfferState = "ACCEPTED"
	OfferStateRejected OfferState = "REJECTED"
	OfferStateExpired  OfferState = "EXPIRED"
)

const (
	OfferDescriptionMin = 10
	OfferDescriptionMax = 500
)

type Offer struct {
	ID             string     `json:"id" firestore:"id"`
	ChatID         string     `json:"chat_id" firestore:"chatId"`
	ProfessionalID string     `json:"professional_id" firestore:"professionalId"`
	ClientID       string     `json:"client_id" firestore:"clientId"`
	Description    string     `json:"description" firestore:"description"`
	Price          float64    `json:"price" firestore:"price"`
	Currency       string     `json:"currency" firestore:"currency"`
	State          OfferState `json:"state" firestore:"state"`
	JobID          string     `json:"job_id,omitempty" firestore:"jobId,omitempty"`
	CreatedAt      time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updated_at" firestore:"updatedAt"`
	ExpiresAt      time.Time  `json:"expires_at" firestore:"expiresAt"`
	DecidedAt      *time.Time `json:"decided_at,omitempty" firestore:"decidedAt,omitempty"`
}

type NewOfferParams struct {
	ID             string
	ChatID         string
	ProfessionalID string
	ClientID       string
	Description    string
	Price          float64
	Currency       string
	ExpiresAt      time.Time
}

// NewOffer validates params and returns an OFFERED offer. A zero ExpiresAt
// means now+ttl.
func NewOffer(p NewOfferParams, now time.Time, ttl time.Duration) (*Offer, error) {
	description := strings.TrimSpace(p.Description)
	length := utf8.RuneCountInString(description)
	if length < OfferDescriptionMin || length > OfferDescriptionMax {
		return nil, errors.Validation("description must be between 10 and 500 characters")
	}
	if p.Price <= 0 {
		return nil, errors.Validation("price must be greater than zero")
	}
	if p.ChatID == "" || p.ProfessionalID == "" || p.ClientID == "" {
		return nil, errors.Validation("chat, professional and client are required")
	}
	if p.ProfessionalID == p.ClientID {
		return nil, errors.Validation("professional and client must be different users")
	}

	expiresAt := p.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(ttl)
	}
	if !expiresAt.After(now) {
		return nil, errors.Validation("expiry must be in the future")
	}

	return &Offer{
		ID:             p.ID,
		ChatID:         p.ChatID,
		ProfessionalID: p.ProfessionalID,
		ClientID:       p.ClientID,
		Description:    description,
		Price:          p.Price,
		Currency:       p.Currency,
		State:          OfferStateOffered,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      expiresAt,
	}, nil
}

func (o *Offer) IsTerminal() bool {
	return o.State != OfferStateOffered
}

func (o *Offer) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsActive reports whether the offer still blocks a new offer in its chat.
func (o *Offer) IsActive(now time.Time) bool {
	return o.State == OfferStateOffered && !o.IsExpired(now)
}

func (o *Offer) Accept(jobID string, now time.Time) error {
	if o.State != OfferStateOffered || o.IsExpired(now) {
		return o.invalid("accept", now)
	}
	o.State = OfferStateAccepted
	o.JobID = jobID
	o.decide(now)
	return nil
}

func (o *Offer) Reject(now time.Time) error {
	if o.State != OfferStateOffered {
		return o.invalid("reject", now)
	}
	o.State = OfferStateRejected
	o.decide(now)
	return nil
}

// Expire moves an overdue OFFERED offer to EXPIRED. It reports false without
// error when the offer is already EXPIRED.
func (o *Offer) Expire(now time.Time) (bool, error) {
	switch {
	case o.State == OfferStateExpired:
		return false, nil
	case o.State != OfferStateOffered, !o.IsExpired(now):
		return false, o.invalid("expire", now)
	}
	o.State = OfferStateExpired
	o.decide(now)
	return true, nil
}

func (o *Offer) decide(now time.Time) {
	o.DecidedAt = &now
	o.UpdatedAt = now
}

func (o *Offer) invalid(action string, now time.Time) error {
	state := string(o.State)
	if o.State == OfferStateOffered && o.IsExpired(now) {
		state = "OFFERED (expired)"
	}
	return errors.InvalidTransition("offer", state, action)
}
