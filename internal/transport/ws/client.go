package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	authorizeWait  = 5 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID

	// subscribedRooms tracks which rooms this connection listens to.
	subscribedRooms map[uuid.UUID]struct{}
	mu              sync.RWMutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		hub:             hub,
		conn:            conn,
		userID:          userID,
		subscribedRooms: make(map[uuid.UUID]struct{}),
		send:            make(chan []byte, sendBufSize),
		done:            make(chan struct{}),
	}
}

// IsSubscribed checks if this client is subscribed to a room.
func (c *Client) IsSubscribed(roomID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscribedRooms[roomID]
	return ok
}

// Subscribe adds a room subscription.
func (c *Client) Subscribe(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribedRooms[roomID] = struct{}{}
}

// Unsubscribe removes a room subscription.
func (c *Client) Unsubscribe(roomID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribedRooms, roomID)
}

// ReadPump reads messages from the WebSocket and routes them to the Hub.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: client %s disconnected", c.userID)
			} else {
				log.Printf("ws: read error from %s: %v", c.userID, err)
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.userID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeRoomSubscribe:
		var p RoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid room.subscribe payload")
			return
		}
		authCtx, cancel := context.WithTimeout(ctx, authorizeWait)
		ok, err := c.hub.authorizer.CanSubscribe(authCtx, c.userID, p.RoomID)
		cancel()
		if err != nil {
			log.Printf("ws: authorize %s for room %s: %v", c.userID, p.RoomID, err)
			c.sendEvent(EventTypeError, &p.RoomID, ErrorPayload{Code: "INTERNAL", Message: "could not subscribe"})
			return
		}
		if !ok {
			c.sendEvent(EventTypeError, &p.RoomID, ErrorPayload{Code: "NOT_FOUND", Message: "room not found"})
			return
		}
		c.Subscribe(p.RoomID)
		c.sendEvent(EventTypeSubscribed, &p.RoomID, p)
		log.Printf("ws: %s subscribed to room %s", c.userID, p.RoomID)

	case EventTypeRoomUnsubscribe:
		var p RoomPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid room.unsubscribe payload")
			return
		}
		c.Unsubscribe(p.RoomID)
		log.Printf("ws: %s unsubscribed from room %s", c.userID, p.RoomID)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong})
	c.enqueue(data)
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(EventTypeError, nil, ErrorPayload{Code: code, Message: message})
}

func (c *Client) sendEvent(eventType string, roomID *uuid.UUID, payload any) {
	evt, err := NewEvent(eventType, roomID, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue never blocks; events for a full or dropped client are discarded.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}
