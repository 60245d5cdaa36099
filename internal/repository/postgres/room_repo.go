package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/onionparts/internal/domain"
)

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

const roomSelect = `
	SELECT r.id, r.product_id, r.buyer_id, r.seller_id, r.buyer_left, r.seller_left, r.created_at,
		p.id, p.title, p.price, p.images[1]
	FROM chat_rooms r
	JOIN products p ON r.product_id = p.id`

func (r *RoomRepo) Create(ctx context.Context, room *domain.ChatRoom) error {
	query := `
		INSERT INTO chat_rooms (product_id, buyer_id, seller_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, room.ProductID, room.BuyerID, room.SellerID).
		Scan(&room.ID, &room.CreatedAt)
}

func (r *RoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, roomSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return room, err
}

func (r *RoomRepo) GetByParticipants(ctx context.Context, productID, buyerID uuid.UUID) (*domain.ChatRoom, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx,
		roomSelect+` WHERE r.product_id = $1 AND r.buyer_id = $2`, productID, buyerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return room, err
}

// ListByUser returns the rooms userID takes part in and has not left.
func (r *RoomRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error) {
	query := roomSelect + `
		WHERE (r.buyer_id = $1 AND NOT r.buyer_left)
			OR (r.seller_id = $1 AND NOT r.seller_left)
		ORDER BY r.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (r *RoomRepo) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `SELECT leave_chat_room($1, $2)`, roomID, userID)
	return err
}

func scanRoom(row pgx.Row) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	var product domain.ProductSummary
	if err := row.Scan(
		&room.ID, &room.ProductID, &room.BuyerID, &room.SellerID,
		&room.BuyerLeft, &room.SellerLeft, &room.CreatedAt,
		&product.ID, &product.Title, &product.Price, &product.Image,
	); err != nil {
		return nil, err
	}
	room.Product = &product
	return &room, nil
}
