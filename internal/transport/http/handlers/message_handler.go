package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vedran77/onionparts/internal/service"
	"github.com/vedran77/onionparts/internal/transport/http/middleware"
	"github.com/vedran77/onionparts/pkg/validator"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Send inserts a message and returns the stored row.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateMessage(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, roomID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "MISSING_CONTENT", "Message content is required")
		case errors.Is(err, service.ErrMissingImageURL):
			writeError(w, http.StatusBadRequest, "MISSING_IMAGE_URL", "Image messages need an image_url")
		case errors.Is(err, service.ErrInvalidMessageKind):
			writeError(w, http.StatusBadRequest, "INVALID_MESSAGE_TYPE", "message_type must be text or image")
		default:
			writeRoomError(w, "send message", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// List returns the room's snapshot, oldest first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	messages, err := h.messageService.Snapshot(r.Context(), userID, roomID)
	if err != nil {
		writeRoomError(w, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}
