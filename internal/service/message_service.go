package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/metrics"
	"github.com/vedran77/onionparts/internal/repository"
)

var (
	ErrEmptyMessage       = errors.New("message content is required")
	ErrMissingImageURL    = errors.New("image messages need an image_url")
	ErrInvalidMessageKind = errors.New("unknown message type")
)

// Notifier broadcasts real-time events to connected clients.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	rooms       *RoomService
	notifier    Notifier
}

func NewMessageService(messageRepo repository.MessageRepository, rooms *RoomService) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		rooms:       rooms,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendMessageInput struct {
	Content  string             `json:"content"`
	Kind     domain.MessageKind `json:"message_type"`
	ImageURL *string            `json:"image_url,omitempty"`
}

// Send persists a message and returns it with the id and timestamp the
// store assigned, then pushes it to the room's live feed.
func (s *MessageService) Send(ctx context.Context, userID, roomID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	msg, err := buildMessage(input)
	if err != nil {
		return nil, err
	}

	if _, err := s.rooms.Authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}

	msg.RoomID = roomID
	msg.SenderID = userID
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues(string(msg.Kind)).Inc()

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(msg)
	}

	return msg, nil
}

// Snapshot returns the room's messages in ascending created_at order.
func (s *MessageService) Snapshot(ctx context.Context, userID, roomID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.rooms.Authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

func buildMessage(input SendMessageInput) (*domain.Message, error) {
	kind := input.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}

	switch kind {
	case domain.MessageKindText:
		content := strings.TrimSpace(input.Content)
		if content == "" {
			return nil, ErrEmptyMessage
		}
		return &domain.Message{Kind: kind, Content: content}, nil

	case domain.MessageKindImage:
		if input.ImageURL == nil || strings.TrimSpace(*input.ImageURL) == "" {
			return nil, ErrMissingImageURL
		}
		url := strings.TrimSpace(*input.ImageURL)
		return &domain.Message{Kind: kind, Content: domain.ImagePlaceholder, ImageURL: &url}, nil
	}

	return nil, ErrInvalidMessageKind
}
