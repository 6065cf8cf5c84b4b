package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"changas/internal/domain/entity"
	"changas/internal/domain/repository"
	"changas/pkg/errors"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	doc, err := r.client.Collection("chats").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}
	chat.ID = doc.Ref.ID

	return &chat, nil
}

func (r *firestoreChatRepository) GetMessage(ctx context.Context, chatID, messageID string) (*entity.Message, error) {
	doc, err := r.messageRef(chatID, messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	return MessageFromSnapshot(doc)
}

func (r *firestoreChatRepository) ApplyCensorship(ctx context.Context, msg *entity.Message, censorship entity.Censorship) error {
	precondition := firestore.Exists
	if !msg.UpdateTime.IsZero() {
		precondition = firestore.LastUpdateTime(msg.UpdateTime)
	}

	_, err := r.messageRef(msg.ChatID, msg.ID).Update(ctx, []firestore.Update{
		{Path: "text", Value: censorship.Text},
		{Path: "censored", Value: true},
		{Path: "censoredAt", Value: censorship.CensoredAt},
		{Path: "censorReasons", Value: censorship.Reasons},
		{Path: "originalTextHash", Value: censorship.OriginalTextHash},
	}, precondition)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return errors.NotFound("Message", err)
		case codes.FailedPrecondition:
			return errors.Conflict("message changed since it was read", err)
		}
		return errors.Internal("Failed to censor message", err)
	}

	return nil
}

func (r *firestoreChatRepository) messageRef(chatID, messageID string) *firestore.DocumentRef {
	return r.client.Collection("chats").Doc(chatID).Collection("messages").Doc(messageID)
}

// MessageFromSnapshot decodes a chats/{chatId}/messages/{id} document,
// filling the path-derived ids and the write time used as precondition.
func MessageFromSnapshot(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}

	message.ID = doc.Ref.ID
	if parent := doc.Ref.Parent.Parent; parent != nil {
		message.ChatID = parent.ID
	}
	message.UpdateTime = doc.UpdateTime

	return &message, nil
}
