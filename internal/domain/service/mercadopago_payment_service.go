package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"changas/pkg/errors"
	"changas/pkg/logger"
)

const mercadoPagoServiceName = "mercadopago"

type MercadoPagoConfig struct {
	BaseURL         string
	AccessToken     string
	WebhookSecret   string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	PendingURL      string
	Timeout         time.Duration
}

// MercadoPagoPaymentService creates hosted checkouts (preferences) and reads
// payments back from the MercadoPago REST API.
type MercadoPagoPaymentService struct {
	cfg    MercadoPagoConfig
	client *http.Client
}

func NewMercadoPagoPaymentService(cfg MercadoPagoConfig) *MercadoPagoPaymentService {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MercadoPagoPaymentService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type preferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceBackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type preferenceRequest struct {
	Items             []preferenceItem    `json:"items"`
	ExternalReference string              `json:"external_reference"`
	NotificationURL   string              `json:"notification_url,omitempty"`
	BackURLs          *preferenceBackURLs `json:"back_urls,omitempty"`
	AutoReturn        string              `json:"auto_return,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (s *MercadoPagoPaymentService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	logger.Debug("Creating MercadoPago preference for transaction %s, amount %.2f %s", req.ExternalReference, req.Amount, req.Currency)

	prefReq := preferenceRequest{
		Items: []preferenceItem{{
			ID:         req.ExternalReference,
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  req.Amount,
			CurrencyID: req.Currency,
		}},
		ExternalReference: req.ExternalReference,
		NotificationURL:   s.cfg.NotificationURL,
	}
	if s.cfg.SuccessURL != "" {
		prefReq.BackURLs = &preferenceBackURLs{
			Success: s.cfg.SuccessURL,
			Failure: s.cfg.FailureURL,
			Pending: s.cfg.PendingURL,
		}
		prefReq.AutoReturn = "approved"
	}

	body, err := json.Marshal(prefReq)
	if err != nil {
		return nil, errors.ExternalService(mercadoPagoServiceName, err)
	}

	raw, status, err := s.do(ctx, http.MethodPost, "/checkout/preferences", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, errors.ExternalService(mercadoPagoServiceName, fmt.Errorf("create preference status %d: %s", status, string(raw)))
	}

	var pref preferenceResponse
	if err := json.Unmarshal(raw, &pref); err != nil {
		return nil, errors.ExternalService(mercadoPagoServiceName, fmt.Errorf("decode preference: %w", err))
	}

	return &CheckoutResponse{
		CheckoutID:  pref.ID,
		RedirectURL: pref.InitPoint,
	}, nil
}

func (s *MercadoPagoPaymentService) GetPayment(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	raw, status, err := s.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.ExternalService(mercadoPagoServiceName, fmt.Errorf("get payment status %d: %s", status, string(raw)))
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.ExternalService(mercadoPagoServiceName, fmt.Errorf("invalid payment body"))
	}

	// The payment id comes back as a JSON number.
	parsed := gjson.GetManyBytes(raw, "id", "status", "external_reference", "transaction_amount", "currency_id")
	paymentStatus := parsed[1].String()

	return &PaymentStatus{
		PaymentID:         parsed[0].String(),
		Status:            paymentStatus,
		ExternalReference: parsed[2].String(),
		Approved:          paymentStatus == "approved",
		Amount:            parsed[3].Float(),
		Currency:          parsed[4].String(),
	}, nil
}

// VerifyNotification checks the x-signature header MercadoPago attaches to
// webhooks: ts=<unix>,v1=<hex hmac-sha256 of "id:<data.id>;request-id:<x-request-id>;ts:<ts>;">.
// Without a configured secret verification is skipped.
func (s *MercadoPagoPaymentService) VerifyNotification(signature, requestID, dataID string) error {
	if s.cfg.WebhookSecret == "" {
		logger.Warn("MercadoPago webhook secret not configured, skipping signature check")
		return nil
	}

	var ts, v1 string
	for _, part := range strings.Split(signature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return errors.Unauthorized("missing webhook signature", nil)
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), requestID, ts)
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return errors.Unauthorized("webhook signature mismatch", nil)
	}
	return nil
}

func (s *MercadoPagoPaymentService) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, 0, errors.ExternalService(mercadoPagoServiceName, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, errors.ExternalService(mercadoPagoServiceName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, errors.ExternalService(mercadoPagoServiceName, err)
	}
	return raw, resp.StatusCode, nil
}
