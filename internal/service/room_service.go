package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/repository"
)

var (
	ErrRoomNotFound   = errors.New("chat room not found")
	ErrCannotChatSelf = errors.New("cannot start a conversation about your own product")
)

// UnknownUserName is shown when the other participant has no profile.
const UnknownUserName = "알 수 없는 사용자"

type RoomService struct {
	roomRepo    repository.RoomRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
}

func NewRoomService(
	roomRepo repository.RoomRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
) *RoomService {
	return &RoomService{
		roomRepo:    roomRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
	}
}

// Open finds or creates the room between the caller (as buyer) and the
// seller of productID.
func (s *RoomService) Open(ctx context.Context, userID, productID uuid.UUID) (*domain.ChatRoom, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.SellerID == userID {
		return nil, ErrCannotChatSelf
	}

	room, err := s.roomRepo.GetByParticipants(ctx, productID, userID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return room, nil
	}

	room = &domain.ChatRoom{
		ProductID: productID,
		BuyerID:   userID,
		SellerID:  product.SellerID,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("creating chat room: %w", err)
	}

	return s.roomRepo.GetByID(ctx, room.ID)
}

// List returns the rooms the user has not left.
func (s *RoomService) List(ctx context.Context, userID uuid.UUID) ([]domain.ChatRoom, error) {
	rooms, err := s.roomRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.ChatRoom{}
	}
	return rooms, nil
}

// View assembles the conversation screen: the room, the other participant's
// name and the message snapshot in ascending created_at order.
func (s *RoomService) View(ctx context.Context, userID, roomID uuid.UUID) (*domain.RoomView, error) {
	room, err := s.Authorize(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	otherID := room.OtherParticipant(userID)
	otherName := UnknownUserName
	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other != nil && other.Username != "" {
		otherName = other.Username
	}

	messages, err := s.messageRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &domain.RoomView{
		Room:          *room,
		OtherUserID:   otherID,
		OtherUserName: otherName,
		Messages:      messages,
	}, nil
}

// Leave marks the caller as gone. When both participants have left the
// store deletes the room and its messages.
func (s *RoomService) Leave(ctx context.Context, userID, roomID uuid.UUID) error {
	if _, err := s.Authorize(ctx, userID, roomID); err != nil {
		return err
	}
	if err := s.roomRepo.Leave(ctx, roomID, userID); err != nil {
		return fmt.Errorf("leaving chat room: %w", err)
	}
	return nil
}

// Authorize loads the room and checks that userID takes part in it.
// Missing rooms and strangers both get ErrRoomNotFound so room ids are not
// disclosed.
func (s *RoomService) Authorize(ctx context.Context, userID, roomID uuid.UUID) (*domain.ChatRoom, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil || !room.IsParticipant(userID) {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// CanSubscribe reports whether userID may receive the room's live feed.
func (s *RoomService) CanSubscribe(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	_, err := s.Authorize(ctx, userID, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return false, nil
	}
	return err == nil, err
}
