package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatRoom is a conversation between the buyer and the seller of one product.
type ChatRoom struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	BuyerLeft  bool      `json:"buyer_left"`
	SellerLeft bool      `json:"seller_left"`
	CreatedAt  time.Time `json:"created_at"`
	// Joined fields
	Product *ProductSummary `json:"product,omitempty"`
}

// IsParticipant reports whether userID is the buyer or the seller.
func (r *ChatRoom) IsParticipant(userID uuid.UUID) bool {
	return r.BuyerID == userID || r.SellerID == userID
}

// OtherParticipant returns the counterpart of userID.
func (r *ChatRoom) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if userID == r.BuyerID {
		return r.SellerID
	}
	return r.BuyerID
}

// HasLeft reports whether userID has left the room.
func (r *ChatRoom) HasLeft(userID uuid.UUID) bool {
	switch userID {
	case r.BuyerID:
		return r.BuyerLeft
	case r.SellerID:
		return r.SellerLeft
	}
	return true
}

// RoomView is everything a conversation screen needs when it opens.
type RoomView struct {
	Room          ChatRoom  `json:"room"`
	OtherUserID   uuid.UUID `json:"other_user_id"`
	OtherUserName string    `json:"other_user_name"`
	Messages      []Message `json:"messages"`
}
