package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/chat"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/transport/ws"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const unsubscribeWait = 2 * time.Second

// Subscribe opens a dedicated websocket for roomID and returns once the
// server has acknowledged the subscription. onInsert runs on the reader
// goroutine.
func (c *Client) Subscribe(ctx context.Context, roomID uuid.UUID, onInsert func(domain.Message)) (chat.Subscription, error) {
	wsURL, err := c.feedURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: c.HTTP})
	if err != nil {
		return nil, fmt.Errorf("dialing live feed: %w", err)
	}

	if err := writeEvent(ctx, conn, ws.EventTypeRoomSubscribe, roomID); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, fmt.Errorf("subscribing to room %s: %w", roomID, err)
	}
	if err := awaitAck(ctx, conn, roomID); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		conn:   conn,
		roomID: roomID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.read(readCtx, onInsert)
	return sub, nil
}

func (c *Client) feedURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func writeEvent(ctx context.Context, conn *websocket.Conn, eventType string, roomID uuid.UUID) error {
	payload, err := json.Marshal(ws.RoomPayload{RoomID: roomID})
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, ws.Event{Type: eventType, Payload: payload})
}

// awaitAck reads until the server confirms or rejects the subscription.
// Messages arriving before the ack belong to no snapshot the caller holds,
// so they are skipped along with unrelated events.
func awaitAck(ctx context.Context, conn *websocket.Conn, roomID uuid.UUID) error {
	for {
		var ev ws.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return fmt.Errorf("waiting for subscription ack: %w", err)
		}
		if ev.RoomID == nil || *ev.RoomID != roomID {
			continue
		}
		switch ev.Type {
		case ws.EventTypeSubscribed:
			return nil
		case ws.EventTypeError:
			var p ws.ErrorPayload
			_ = json.Unmarshal(ev.Payload, &p)
			return &APIError{Code: p.Code, Message: p.Message}
		}
	}
}

type subscription struct {
	conn   *websocket.Conn
	roomID uuid.UUID
	cancel context.CancelFunc

	mu      sync.Mutex
	closing bool
	err     error
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) read(ctx context.Context, onInsert func(domain.Message)) {
	defer close(s.done)
	for {
		var ev ws.Event
		if err := wsjson.Read(ctx, s.conn, &ev); err != nil {
			s.mu.Lock()
			if !s.closing {
				s.err = err
			}
			s.mu.Unlock()
			return
		}
		if ev.Type != ws.EventTypeMessageNew {
			continue
		}
		var msg domain.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			continue
		}
		if msg.RoomID != s.roomID {
			continue
		}
		onInsert(msg)
	}
}

// Close unsubscribes and closes the socket. It is safe to call more than once.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeWait)
		_ = writeEvent(ctx, s.conn, ws.EventTypeRoomUnsubscribe, s.roomID)
		cancel()

		// The close handshake is best effort; the socket is gone either way.
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
