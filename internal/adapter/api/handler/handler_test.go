package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"changas/internal/adapter/api"
	"changas/internal/adapter/api/handler"
	"changas/internal/adapter/api/middleware"
	"changas/internal/adapter/api/router"
	"changas/internal/adapter/repository/memory"
	"changas/internal/domain/entity"
	"changas/internal/domain/service"
	"changas/internal/infrastructure/firebase"
	"changas/internal/infrastructure/ratelimit"
	"changas/internal/infrastructure/websocket"
	"changas/internal/usecase"
)

const (
	chatID       = "chat-1"
	clientID     = "client-1"
	professional = "pro-1"
	apiKey       = "internal-key"
)

type stubGateway struct {
	mu       sync.Mutex
	payments map[string]*service.PaymentStatus
}

func (g *stubGateway) CreateCheckout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResponse, error) {
	return &service.CheckoutResponse{
		CheckoutID:  "pref-" + req.ExternalReference,
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
	return nil
}

type recordingSubmitter struct {
	mu     sync.Mutex
	events []usecase.MessageEvent
}

func (s *recordingSubmitter) Submit(ctx context.Context, ev usecase.MessageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

type testServer struct {
	e         *echo.Echo
	payments  *stubGateway
	submitted *recordingSubmitter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	store.Chats().PutChat(entity.Chat{
		ID:             chatID,
		ParticipantIDs: []string{clientID, professional},
		ClientID:       clientID,
		ProfessionalID: professional,
		CreatedAt:      time.Now().UTC(),
	})

	payments := &stubGateway{payments: map[string]*service.PaymentStatus{}}
	wsManager := websocket.NewManager()

	escrow := usecase.NewEscrowUseCase(store, store.Transactions(), store, payments, wsManager)
	negotiation := usecase.NewNegotiationUseCase(store, store.Offers(), store.Jobs(), store.Chats(), escrow, wsManager, usecase.NegotiationConfig{
		OfferTTL: 72 * time.Hour,
		Currency: "ARS",
	})
	handler.Setup(negotiation, escrow)

	e := echo.New()
	e.Validator = api.NewValidator()

	authMiddleware := middleware.NewAuthMiddleware(firebase.DevTokenVerifier{})
	submitted := &recordingSubmitter{}

	router.Setup(e, router.Handlers{
		Health:     handler.NewHealthHandler("memory", map[string]handler.HealthCheck{}),
		Payment:    handler.NewPaymentHandler(escrow),
		Moderation: handler.NewModerationHandler(submitted),
		WebSocket:  handler.NewWebSocketHandler(wsManager, authMiddleware, nil),
	}, authMiddleware, ratelimit.NewRateLimiter(1000, 1000), apiKey)

	return &testServer{e: e, payments: payments, submitted: submitted}
}

func (s *testServer) do(method, path, uid, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if uid != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer dev:"+uid)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createOffer(t *testing.T) string {
	t.Helper()
	rec := s.do(http.MethodPost, "/v1/chats/"+chatID+"/offers", professional, `{"description":"Cambio de cañería en el baño","price":5000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return gjson.Get(rec.Body.String(), "data.id").String()
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "memory", gjson.Get(rec.Body.String(), "storage").String())
}

func TestCheckDependencies(t *testing.T) {
	healthy := func(ctx context.Context) error { return nil }

	t.Run("all checks pass", func(t *testing.T) {
		e := echo.New()
		e.GET("/health/dependencies", handler.NewHealthHandler("firestore", map[string]handler.HealthCheck{
			"firestore":     healthy,
			"firebase_auth": healthy,
		}).CheckDependencies)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/dependencies", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "firestore").String())
		assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "firebase_auth").String())
	})

	t.Run("auth outage is reported", func(t *testing.T) {
		e := echo.New()
		e.GET("/health/dependencies", handler.NewHealthHandler("firestore", map[string]handler.HealthCheck{
			"firestore":     healthy,
			"firebase_auth": func(ctx context.Context) error { return fmt.Errorf("auth backend unavailable") },
		}).CheckDependencies)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/dependencies", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "firestore").String())
		assert.Equal(t, "auth backend unavailable", gjson.Get(rec.Body.String(), "firebase_auth").String())
	})
}

func TestOfferRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/chats/"+chatID+"/offers", "", `{"description":"Cambio de cañería en el baño","price":5000}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", gjson.Get(rec.Body.String(), "error.code").String())
}

func TestCreateOfferValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/chats/"+chatID+"/offers", professional, `{"description":"Cambio de cañería","price":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", gjson.Get(rec.Body.String(), "error.code").String())

	rec = s.do(http.MethodPost, "/v1/chats/"+chatID+"/offers", professional, `{"description":"corto","price":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", gjson.Get(rec.Body.String(), "error.code").String())
}

func TestAcceptOfferAuthorization(t *testing.T) {
	s := newTestServer(t)
	offerID := s.createOffer(t)

	rec := s.do(http.MethodPost, "/v1/offers/"+offerID+"/accept", professional, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/v1/offers/"+offerID+"/accept", clientID, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/v1/offers/"+offerID+"/accept", clientID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", gjson.Get(rec.Body.String(), "error.code").String())
}

func TestOfferToReleasedPaymentOverHTTP(t *testing.T) {
	s := newTestServer(t)
	offerID := s.createOffer(t)

	rec := s.do(http.MethodPost, "/v1/offers/"+offerID+"/accept", clientID, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := rec.Body.String()
	transactionID := gjson.Get(body, "data.transaction.id").String()
	jobID := gjson.Get(body, "data.job.id").String()
	assert.Equal(t, "https://mp.test/checkout/"+transactionID, gjson.Get(body, "data.checkout_url").String())
	assert.Equal(t, "PENDING", gjson.Get(body, "data.transaction.state").String())

	s.payments.payments["mp_123"] = &service.PaymentStatus{
		PaymentID:         "mp_123",
		ExternalReference: transactionID,
		Status:            "approved",
		Approved:          true,
		Amount:            5000,
		Currency:          "ARS",
	}
	rec = s.do(http.MethodPost, "/v1/payments/mercadopago/webhook", "", `{"type":"payment","data":{"id":"mp_123"}}`,
		"X-Signature", "ts=1,v1=abc", "X-Request-Id", "req-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/v1/transactions/"+transactionID, clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAID", gjson.Get(rec.Body.String(), "data.state").String())
	assert.Equal(t, "mp_123", gjson.Get(rec.Body.String(), "data.payment_provider_id").String())

	rec = s.do(http.MethodPost, "/v1/transactions/"+transactionID+"/release", professional, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/v1/transactions/"+transactionID+"/release", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "RELEASED", gjson.Get(rec.Body.String(), "data.state").String())

	rec = s.do(http.MethodPost, "/v1/jobs/"+jobID+"/approve", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "APPROVED", gjson.Get(rec.Body.String(), "data.state").String())

	rec = s.do(http.MethodPost, "/v1/transactions/"+transactionID+"/refund", clientID, `{"reason":"no apareció"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/v1/transactions/"+transactionID+"/logs", professional, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "data").Array(), 6)

	rec = s.do(http.MethodGet, "/v1/jobs?page=1&limit=10", professional, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "data.total").Int())
}

func TestRefundRequiresReason(t *testing.T) {
	s := newTestServer(t)
	offerID := s.createOffer(t)

	rec := s.do(http.MethodPost, "/v1/offers/"+offerID+"/accept", clientID, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	transactionID := gjson.Get(rec.Body.String(), "data.transaction.id").String()

	rec = s.do(http.MethodPost, "/v1/transactions/"+transactionID+"/refund", clientID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentWebhookIgnoresOtherTopics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/payments/mercadopago/webhook?type=merchant_order&data.id=42", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentWebhookUnknownPaymentIsRetried(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/payments/mercadopago/webhook", "", `{"type":"payment","data":{"id":"mp_missing"}}`)

	assert.GreaterOrEqual(t, rec.Code, http.StatusInternalServerError)
}

func TestRejectAndListOffers(t *testing.T) {
	s := newTestServer(t)
	offerID := s.createOffer(t)

	rec := s.do(http.MethodPost, "/v1/offers/"+offerID+"/reject", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REJECTED", gjson.Get(rec.Body.String(), "data.state").String())

	rec = s.do(http.MethodGet, "/v1/chats/"+chatID+"/offers", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "data.total").Int())

	rec = s.do(http.MethodGet, "/v1/chats/"+chatID+"/offers", "stranger", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelJobWithoutBody(t *testing.T) {
	s := newTestServer(t)
	offerID := s.createOffer(t)

	rec := s.do(http.MethodPost, "/v1/offers/"+offerID+"/accept", clientID, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	jobID := gjson.Get(rec.Body.String(), "data.job.id").String()

	rec = s.do(http.MethodPost, "/v1/jobs/"+jobID+"/cancel", professional, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED", gjson.Get(rec.Body.String(), "data.job.state").String())
	assert.Equal(t, "CANCELLED", gjson.Get(rec.Body.String(), "data.transaction.state").String())
}

func TestModerationEventEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := `{"chat_id":"chat-1","message_id":"m-1"}`

	rec := s.do(http.MethodPost, "/internal/moderation/events", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/internal/moderation/events", "", `{"chat_id":"chat-1"}`, "X-API-Key", apiKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/internal/moderation/events", "", body, "X-API-Key", apiKey)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, s.submitted.events, 1)
	assert.Equal(t, usecase.MessageEvent{ChatID: "chat-1", MessageID: "m-1"}, s.submitted.events[0])
}

func TestWebSocketRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/ws", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
