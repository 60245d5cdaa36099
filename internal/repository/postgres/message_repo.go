package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/onionparts/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Create inserts the message and reads back the id and timestamp the
// database assigned.
func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (room_id, sender_id, content, message_type, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.RoomID, msg.SenderID, msg.Content, msg.Kind, msg.ImageURL,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *MessageRepo) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT id, room_id, sender_id, content, message_type, image_url, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content,
			&msg.Kind, &msg.ImageURL, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
