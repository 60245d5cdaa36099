package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
)

// ImagePlaceholder is the display text stored with every image message.
const ImagePlaceholder = "사진을 보냈습니다."

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	return k == MessageKindText || k == MessageKindImage
}

type Message struct {
	ID        uuid.UUID   `json:"id"`
	RoomID    uuid.UUID   `json:"room_id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"message_type"`
	ImageURL  *string     `json:"image_url,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
