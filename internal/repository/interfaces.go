package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/pulsefeed/internal/domain"
)

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByConversation returns up to limit messages older than before
	// (or the newest when before is nil), oldest first.
	ListByConversation(ctx context.Context, conversationID string, before *uuid.UUID, limit int) ([]domain.Message, error)
}
