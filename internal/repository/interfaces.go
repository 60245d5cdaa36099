package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// ClaimAdmin runs the claim_admin procedure and reports whether the
	// password granted admin rights.
	ClaimAdmin(ctx context.Context, userID uuid.UUID, password string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type CatalogRepository interface {
	ListBrands(ctx context.Context) ([]domain.Brand, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateBrand(ctx context.Context, name string) (*domain.Brand, error)
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	GetBrand(ctx context.Context, id int64) (*domain.Brand, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
}

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// List returns products matching filter, newest first. limit <= 0 means no limit.
	List(ctx context.Context, filter domain.ProductFilter, limit int) ([]domain.Product, error)
	ListByCategory(ctx context.Context, categoryID int64, exclude uuid.UUID, limit int) ([]domain.Product, error)
	ListLatest(ctx context.Context, exclude uuid.UUID, limit int) ([]domain.Product, error)
}

type RoomRepository interface {
	Create(ctx context.Context, room *domain.ChatRoom) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error)
	GetByParticipants(ctx context.Context, productID, buyerID uuid.UUID) (*domain.ChatRoom, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error)
	// Leave runs the leave_chat_room procedure for userID.
	Leave(ctx context.Context, roomID, userID uuid.UUID) error
}

type MessageRepository interface {
	// Create inserts msg and fills in the store-assigned ID and CreatedAt.
	Create(ctx context.Context, msg *domain.Message) error
	// ListByRoom returns the room's messages ascending by created_at.
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Message, error)
}
