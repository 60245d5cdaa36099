package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/vedran77/onionparts/internal/service"
)

// Pinger is satisfied by *service.KeepAliveService.
type Pinger interface {
	Ping(ctx context.Context) (*service.KeepAliveResponse, error)
}

type KeepAliveHandler struct {
	pinger Pinger
}

func NewKeepAliveHandler(pinger Pinger) *KeepAliveHandler {
	return &KeepAliveHandler{pinger: pinger}
}

func (h *KeepAliveHandler) Ping(w http.ResponseWriter, r *http.Request) {
	resp, err := h.pinger.Ping(r.Context())
	if err != nil {
		log.Printf("ERROR keep-alive: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "error",
			"timestamp": time.Now().UTC(),
			"error":     map[string]string{"code": "KEEPALIVE_FAILED", "message": "Database did not respond"},
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
