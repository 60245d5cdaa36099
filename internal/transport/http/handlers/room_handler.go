package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/service"
	"github.com/vedran77/onionparts/internal/transport/http/middleware"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// Open starts (or resumes) the caller's conversation about a product.
func (h *RoomHandler) Open(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	productID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid product ID")
		return
	}

	room, err := h.roomService.Open(r.Context(), userID, productID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
		case errors.Is(err, service.ErrCannotChatSelf):
			writeError(w, http.StatusBadRequest, "OWN_PRODUCT", "You cannot chat about your own product")
		default:
			writeInternal(w, "open room", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rooms, err := h.roomService.List(r.Context(), userID)
	if err != nil {
		writeInternal(w, "list rooms", err)
		return
	}

	writeJSON(w, http.StatusOK, rooms)
}

// View returns everything the conversation screen needs to open.
func (h *RoomHandler) View(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.roomService.View(r.Context(), userID, roomID)
	if err != nil {
		writeRoomError(w, "view room", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	if err := h.roomService.Leave(r.Context(), userID, roomID); err != nil {
		writeRoomError(w, "leave room", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func roomIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return uuid.Nil, false
	}
	return id, true
}

func writeRoomError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, service.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "Room not found")
		return
	}
	writeInternal(w, op, err)
}
