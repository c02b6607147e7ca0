package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulsefeed/internal/domain"
	"github.com/vedran77/pulsefeed/internal/repository"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidCursor   = errors.New("invalid cursor")
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Notifier broadcasts real-time events to connected clients.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	notifier    Notifier
	now         func() time.Time
}

func NewMessageService(messageRepo repository.MessageRepository) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		now:         time.Now,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	Content  string `json:"content"`
	UserSeed *int64 `json:"user_seed,omitempty"`
}

// Send stores a message from sender, or from an anonymous author when
// sender is nil. Anonymous authors without a seed get a random one.
func (s *MessageService) Send(ctx context.Context, sender *domain.User, conversationID string, input SendMessageInput) (*domain.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	msg := &domain.Message{
		ID:             id.String(),
		ConversationID: conversationID,
		Content:        input.Content,
		CreatedAt:      s.now().UTC(),
	}
	if sender != nil {
		user := *sender
		msg.User = &user
	} else {
		seed := rand.Int64N(1 << 31)
		if input.UserSeed != nil {
			seed = *input.UserSeed
		}
		msg.UserSeed = &seed
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	// Dohvati sa sender info
	full, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if full == nil {
		return nil, ErrMessageNotFound
	}

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(full)
	}

	return full, nil
}

// List returns one page in ascending order. An empty before returns the
// newest page. Limits above MaxPageSize are clamped.
func (s *MessageService) List(ctx context.Context, conversationID, before string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	var cursor *uuid.UUID
	if before != "" {
		id, err := uuid.Parse(before)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		cursor = &id
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID, cursor, limit)
	if err != nil {
		return nil, err
	}

	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
