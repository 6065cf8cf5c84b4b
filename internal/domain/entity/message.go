package entity

import (
	"fmt"
	"time"
)

// CensorReasons records which detectors fired for a censored message.
type CensorReasons struct {
	Phone  bool `json:"phone" firestore:"phone"`
	Email  bool `json:"email" firestore:"email"`
	Social bool `json:"social" firestore:"social"`
}

func (r CensorReasons) Any() bool {
	return r.Phone || r.Email || r.Social
}

// String renders the reasons in the wire format the moderation webhook expects.
func (r CensorReasons) String() string {
	return fmt.Sprintf("phone:%t, email:%t, social:%t", r.Phone, r.Email, r.Social)
}

// Message mirrors a chat message document stored under chats/{chatId}/messages.
// ID and ChatID come from the document path.
type Message struct {
	ID               string         `json:"id" firestore:"-"`
	ChatID           string         `json:"chat_id" firestore:"-"`
	SenderID         string         `json:"sender_id" firestore:"senderId"`
	Text             string         `json:"text" firestore:"text"`
	SentAt           time.Time      `json:"sent_at" firestore:"sentAt"`
	Censored         bool           `json:"censored" firestore:"censored"`
	CensoredAt       *time.Time     `json:"censored_at,omitempty" firestore:"censoredAt,omitempty"`
	CensorReasons    *CensorReasons `json:"censor_reasons,omitempty" firestore:"censorReasons,omitempty"`
	OriginalTextHash string         `json:"original_text_hash,omitempty" firestore:"originalTextHash,omitempty"`

	// UpdateTime is the store's last write time when the message was read.
	// Persisting a censorship is conditional on it.
	UpdateTime time.Time `json:"-" firestore:"-"`
}

// Censorship is the single rewrite the moderation pipeline applies to a message.
type Censorship struct {
	Text             string
	Reasons          CensorReasons
	OriginalTextHash string
	CensoredAt       time.Time
}

// ApplyTo returns a copy of m carrying the censorship. No other field changes.
func (c Censorship) ApplyTo(m Message) Message {
	reasons := c.Reasons
	at := c.CensoredAt
	m.Text = c.Text
	m.Censored = true
	m.CensorReasons = &reasons
	m.CensoredAt = &at
	m.OriginalTextHash = c.OriginalTextHash
	return m
}
