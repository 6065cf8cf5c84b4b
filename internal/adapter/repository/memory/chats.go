package memory

import (
	"context"
	"time"

	"changas/internal/domain/entity"
	"changas/pkg/errors"
)

func (s *Store) Chats() *ChatStore {
	return &ChatStore{s}
}

type ChatStore struct {
	s *Store
}

// PutChat stores a chat as the external chat service would create it.
func (c *ChatStore) PutChat(chat entity.Chat) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.chats[chat.ID] = chat
}

// PutMessage stores or overwrites a message and stamps its update time.
func (c *ChatStore) PutMessage(msg entity.Message) entity.Message {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	msg.UpdateTime = c.s.tick()
	c.s.messages[messageKey(msg.ChatID, msg.ID)] = msg
	return msg
}

func (c *ChatStore) DeleteMessage(chatID, messageID string) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.messages, messageKey(chatID, messageID))
}

func (c *ChatStore) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	chat, ok := c.s.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return &chat, nil
}

func (c *ChatStore) GetMessage(ctx context.Context, chatID, messageID string) (*entity.Message, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	msg, ok := c.s.messages[messageKey(chatID, messageID)]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return &msg, nil
}

func (c *ChatStore) ApplyCensorship(ctx context.Context, msg *entity.Message, censorship entity.Censorship) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	key := messageKey(msg.ChatID, msg.ID)
	stored, ok := c.s.messages[key]
	if !ok {
		return errors.NotFound("Message", nil)
	}
	if !msg.UpdateTime.IsZero() && !stored.UpdateTime.Equal(msg.UpdateTime) {
		return errors.Conflict("message changed since it was read", nil)
	}

	censored := censorship.ApplyTo(stored)
	censored.UpdateTime = c.s.tick()
	c.s.messages[key] = censored
	return nil
}

// tick returns a strictly increasing update time. Callers hold the write lock.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastUpdate) {
		now = s.lastUpdate.Add(time.Microsecond)
	}
	s.lastUpdate = now
	return now
}
