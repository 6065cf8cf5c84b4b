package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"changas/internal/adapter/repository/memory"
	"changas/internal/domain/entity"
	"changas/internal/domain/service"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const (
	testChatID       = "chat-1"
	testClientID     = "client-1"
	testProfessional = "pro-1"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) PublishToUsers(userIDs []string, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type stubGateway struct {
	mu          sync.Mutex
	checkoutErr error
	verifyErr   error
	checkouts   int
	payments    map[string]*service.PaymentStatus
}

func (g *stubGateway) CreateCheckout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkoutErr != nil {
		return nil, g.checkoutErr
	}
	g.checkouts++
	return &service.CheckoutResponse{
		CheckoutID:  fmt.Sprintf("pref-%d", g.checkouts),
		RedirectURL: "https://mp.test/checkout/" + req.ExternalReference,
	}, nil
}

func (g *stubGateway) GetPayment(ctx context.Context, paymentID string) (*service.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", paymentID)
	}
	return p, nil
}

func (g *stubGateway) VerifyNotification(signature, requestID, dataID string) error {
	return g.verifyErr
}

type fixture struct {
	store       *memory.Store
	clock       *fakeClock
	events      *recordingPublisher
	payments    *stubGateway
	escrow      *EscrowUseCase
	negotiation *NegotiationUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	store.Chats().PutChat(entity.Chat{
		ID:             testChatID,
		ParticipantIDs: []string{testClientID, testProfessional},
		ClientID:       testClientID,
		ProfessionalID: testProfessional,
		CreatedAt:      t0,
	})

	clock := &fakeClock{now: t0}
	events := &recordingPublisher{}
	payments := &stubGateway{payments: map[string]*service.PaymentStatus{}}

	escrow := NewEscrowUseCase(store, store.Transactions(), store, payments, events)
	escrow.now = clock.Now

	negotiation := NewNegotiationUseCase(store, store.Offers(), store.Jobs(), store.Chats(), escrow, events, NegotiationConfig{
		OfferTTL: 72 * time.Hour,
		Currency: "ARS",
	})
	negotiation.now = clock.Now

	return &fixture{
		store:       store,
		clock:       clock,
		events:      events,
		payments:    payments,
		escrow:      escrow,
		negotiation: negotiation,
	}
}

func (f *fixture) createOffer(t *testing.T, price float64) *entity.Offer {
	t.Helper()
	offer, err := f.negotiation.CreateOffer(context.Background(), testProfessional, testChatID, CreateOfferInput{
		Description: "Instalación eléctrica completa",
		Price:       price,
	})
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return offer
}
