package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/metrics"
)

// RoomAuthorizer decides whether a user may receive a room's live feed.
type RoomAuthorizer interface {
	CanSubscribe(ctx context.Context, userID, roomID uuid.UUID) (bool, error)
}

// Hub manages all active WebSocket clients and routes room events.
type Hub struct {
	// A user may hold several connections, one per open conversation.
	clients map[*Client]struct{}

	authorizer RoomAuthorizer

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	stopped    chan struct{}
}

type broadcastMsg struct {
	roomID uuid.UUID
	data   []byte
}

func NewHub(authorizer RoomAuthorizer) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		authorizer: authorizer,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		stopped:    make(chan struct{}),
	}
}

// Run starts the Hub's main event loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return nil

		case client := <-h.register:
			h.clients[client] = struct{}{}
			metrics.WSConnections.Inc()
			log.Printf("ws hub: user %s connected (%d connections)", client.userID, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Printf("ws hub: user %s disconnected (%d connections)", client.userID, len(h.clients))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.IsSubscribed(msg.roomID) {
					continue
				}
				select {
				case client.send <- msg.data:
				case <-client.done:
				default:
					// Client buffer full - disconnect
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.done)
	metrics.WSConnections.Dec()
}

// BroadcastToRoom sends an event to all subscribers of a room.
func (h *Hub) BroadcastToRoom(roomID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMsg{roomID: roomID, data: data}:
	case <-h.stopped:
	}
}

// Register hands a new connection to the hub. It reports false once the
// hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}
