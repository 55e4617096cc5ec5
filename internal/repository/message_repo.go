package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-messenger/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m model.Message) (model.Message, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		m.SenderID, m.ReceiverID, m.Content, m.CreatedAt).
		Scan(&m.ID)
	if err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// Between returns one page of the conversation between two users, newest
// first, plus the total message count.
func (r *MessageRepository) Between(ctx context.Context, userA int64, userB int64, limit int, offset int) ([]model.Message, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)`,
		userA, userB).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count conversation: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, content, created_at FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userA, userB, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversation: %w", err)
	}

	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, 0, fmt.Errorf("scan conversation: %w", err)
	}

	return messages, total, nil
}

func (r *MessageRepository) ConversationPartners(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END
		 FROM messages
		 WHERE sender_id = $1 OR receiver_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list conversation partners: %w", err)
	}

	partners, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan conversation partners: %w", err)
	}

	return partners, nil
}

func (r *MessageRepository) History(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, content, created_at FROM messages
		 WHERE sender_id = $1 OR receiver_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}

	return messages, nil
}

func scanMessage(row pgx.CollectableRow) (model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt)
	return m, err
}
