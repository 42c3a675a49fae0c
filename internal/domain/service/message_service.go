package service

import (
	"context"

	"bibomarket/internal/domain/entity"
)

type SendMessageInput struct {
	ReceiverID string
	Content    string
	Media      *entity.MediaFile
}

// MessageService is the messaging half of the marketplace API. Every call
// is made at most once; callers decide how to treat failures.
type MessageService interface {
	ListConversations(ctx context.Context) ([]*entity.Conversation, error)
	ListMessages(ctx context.Context, partnerID string) (*entity.Thread, error)
	Send(ctx context.Context, input SendMessageInput) (*entity.Message, error)
	MarkAllRead(ctx context.Context, partnerID string) (int, error)
	MarkRead(ctx context.Context, messageID string) error
	Update(ctx context.Context, messageID, content string) (*entity.Message, error)
	Delete(ctx context.Context, messageID string, forEveryone bool) error
	UnreadCount(ctx context.Context) (int, error)
	Search(ctx context.Context, query string) ([]*entity.Message, error)
}
