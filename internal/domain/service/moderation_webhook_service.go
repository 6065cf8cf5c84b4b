package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"changas/internal/domain/entity"
	"changas/pkg/errors"
)

const moderationServiceName = "moderation webhook"

// ModerationWebhookService reports censored messages to the account-standing
// service, which keeps the infraction counters and decides chat bans.
type ModerationWebhookService struct {
	url    string
	apiKey string
	client *http.Client
}

func NewModerationWebhookService(url, apiKey string, timeout time.Duration) *ModerationWebhookService {
	return &ModerationWebhookService{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type moderationWebhookRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type moderationWebhookResponse struct {
	IsChatBanned     bool `json:"is_chat_banned"`
	InfraccionesChat int  `json:"infracciones_chat"`
}

func (s *ModerationWebhookService) Notify(ctx context.Context, userID string, reasons entity.CensorReasons) (*entity.InfractionResult, error) {
	if s.url == "" {
		return nil, errors.ExternalService(moderationServiceName, fmt.Errorf("webhook url not configured"))
	}

	body, err := json.Marshal(moderationWebhookRequest{
		UserID: userID,
		Reason: reasons.String(),
	})
	if err != nil {
		return nil, errors.ExternalService(moderationServiceName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.ExternalService(moderationServiceName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.ExternalService(moderationServiceName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, errors.ExternalService(moderationServiceName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.ExternalService(moderationServiceName, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed moderationWebhookResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.ExternalService(moderationServiceName, fmt.Errorf("decode response: %w", err))
	}

	return &entity.InfractionResult{
		Accepted:        true,
		BannedFromChat:  parsed.IsChatBanned,
		InfractionCount: parsed.InfraccionesChat,
	}, nil
}
