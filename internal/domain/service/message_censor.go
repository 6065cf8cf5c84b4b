package service

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"changas/internal/domain/entity"
)

const DefaultCensoredPlaceholder = "Mensaje censurado: no está permitido compartir datos de contacto."

type CensorResult struct {
	Censored   bool
	Censorship entity.Censorship
}

type MessageCensor struct {
	detector    *ContactDetector
	placeholder string
}

func NewMessageCensor(detector *ContactDetector, placeholder string) *MessageCensor {
	if placeholder == "" {
		placeholder = DefaultCensoredPlaceholder
	}
	return &MessageCensor{
		detector:    detector,
		placeholder: placeholder,
	}
}

func (c *MessageCensor) Placeholder() string {
	return c.placeholder
}

// Apply decides whether msg must be rewritten to the placeholder. A message
// already carrying the placeholder is left alone so the rewrite cannot
// trigger another pass.
func (c *MessageCensor) Apply(msg entity.Message, now time.Time) (CensorResult, error) {
	if msg.Text == c.placeholder {
		return CensorResult{}, nil
	}

	detection, err := c.detector.Detect(msg.Text)
	if err != nil {
		return CensorResult{}, err
	}
	if !detection.Any() {
		return CensorResult{}, nil
	}

	return CensorResult{
		Censored: true,
		Censorship: entity.Censorship{
			Text:             c.placeholder,
			Reasons:          detection.Reasons(),
			OriginalTextHash: Fingerprint(msg.Text),
			CensoredAt:       now,
		},
	}, nil
}

// Fingerprint is a non-reversible digest of the original text kept for audit.
func Fingerprint(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}
