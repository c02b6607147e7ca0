package postgres

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/pulsefeed/internal/domain"
)

const selectMessage = `
	SELECT m.id, m.conversation_id, m.content, m.user_seed, m.account_id,
		a.display_name, m.created_at
	FROM messages m
	LEFT JOIN accounts a ON m.account_id = a.id`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	id, err := uuid.Parse(msg.ID)
	if err != nil {
		return err
	}

	var accountID *uuid.UUID
	if msg.Authenticated() {
		aid, err := uuid.Parse(msg.User.ID)
		if err != nil {
			return err
		}
		accountID = &aid
	}

	query := `
		INSERT INTO messages (id, conversation_id, content, user_seed, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.pool.Exec(ctx, query,
		id, msg.ConversationID, msg.Content, msg.UserSeed, accountID, msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, selectMessage+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string, before *uuid.UUID, limit int) ([]domain.Message, error) {
	// ids are uuid v7, so id order is creation order
	query := selectMessage + `
		WHERE m.conversation_id = $1 AND ($2::uuid IS NULL OR m.id < $2)
		ORDER BY m.id DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// the query runs newest first; callers expect chronological order
	slices.Reverse(messages)
	return messages, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		msg         domain.Message
		id          uuid.UUID
		accountID   *uuid.UUID
		displayName *string
	)
	if err := row.Scan(
		&id, &msg.ConversationID, &msg.Content, &msg.UserSeed, &accountID,
		&displayName, &msg.CreatedAt,
	); err != nil {
		return nil, err
	}

	msg.ID = id.String()
	if accountID != nil {
		msg.User = &domain.User{ID: accountID.String()}
		if displayName != nil {
			msg.User.DisplayName = *displayName
		}
	}
	return &msg, nil
}
