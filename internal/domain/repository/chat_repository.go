package repository

import (
	"context"

	"changas/internal/domain/entity"
)

type ChatRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Chat, error)

	GetMessage(ctx context.Context, chatID, messageID string) (*entity.Message, error)
	// ApplyCensorship writes only the moderation fields of the message. It
	// fails with a conflict error when the stored message changed after
	// msg.UpdateTime.
	ApplyCensorship(ctx context.Context, msg *entity.Message, censorship entity.Censorship) error
}
