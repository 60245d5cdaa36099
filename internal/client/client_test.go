package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/onionparts/internal/chat"
	"github.com/vedran77/onionparts/internal/domain"
	"github.com/vedran77/onionparts/internal/transport/ws"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "kim@example.com", body["email"])
		json.NewEncoder(w).Encode(map[string]any{
			"user":         map[string]any{"id": uuid.New(), "username": "kim"},
			"access_token": "tok",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Login(context.Background(), "kim@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", res.AccessToken)
	assert.Equal(t, "tok", c.Token)
}

func TestInsertMessage(t *testing.T) {
	room := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/rooms/"+room.String()+"/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])
		assert.Equal(t, "text", body["message_type"])
		_, hasURL := body["image_url"]
		assert.False(t, hasURL)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Message{ID: uuid.New(), RoomID: room, Content: "hello", Kind: domain.MessageKindText})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.Token = "tok"
	msg, err := c.InsertMessage(context.Background(), chat.NewMessage{RoomID: room, Content: "hello", Kind: domain.MessageKindText})
	require.NoError(t, err)
	assert.Equal(t, room, msg.RoomID)
	assert.NotEqual(t, uuid.Nil, msg.ID)
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"ROOM_NOT_FOUND","message":"Room not found"}}`))
	}))
	defer srv.Close()

	err := New(srv.URL).LeaveRoom(context.Background(), uuid.New())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "ROOM_NOT_FOUND", apiErr.Code)
}

func TestErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Rooms(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestUploadReturnsPublicURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/storage/v1/object/chat-images/room/1-abc.png", r.URL.Path)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "png", string(data))
		json.NewEncoder(w).Encode(map[string]string{"public_url": "https://cdn.example/x.png"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	url, err := c.Upload(context.Background(), "chat-images", "room/1-abc.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x.png", url)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/chat-images/other.png", c.PublicURL("chat-images", "other.png"))
}

type allowRooms map[uuid.UUID]bool

func (a allowRooms) CanSubscribe(_ context.Context, _, roomID uuid.UUID) (bool, error) {
	return a[roomID], nil
}

func signToken(t *testing.T, secret string, userID uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func startFeed(t *testing.T, rooms allowRooms) (*ws.Hub, *Client) {
	t.Helper()
	const secret = "test-secret"
	hub := ws.NewHub(rooms)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.ServeWS(hub, secret))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	c := New(srv.URL)
	c.Token = signToken(t, secret, uuid.New())
	return hub, c
}

func TestSubscribeDeliversRoomMessages(t *testing.T) {
	room := uuid.New()
	hub, c := startFeed(t, allowRooms{room: true})

	got := make(chan domain.Message, 4)
	sub, err := c.Subscribe(context.Background(), room, func(m domain.Message) { got <- m })
	require.NoError(t, err)

	other := domain.Message{ID: uuid.New(), RoomID: uuid.New(), Content: "elsewhere"}
	ev, err := ws.NewEvent(ws.EventTypeMessageNew, &other.RoomID, ws.MessagePayload{Message: other})
	require.NoError(t, err)
	hub.BroadcastToRoom(room, ev)

	want := domain.Message{ID: uuid.New(), RoomID: room, Content: "hi", Kind: domain.MessageKindText}
	ev, err = ws.NewEvent(ws.EventTypeMessageNew, &room, ws.MessagePayload{Message: want})
	require.NoError(t, err)
	hub.BroadcastToRoom(room, ev)

	select {
	case m := <-got:
		assert.Equal(t, want.ID, m.ID)
		assert.Equal(t, "hi", m.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not done after Close")
	}
	assert.NoError(t, sub.Err())
	assert.Empty(t, got)
}

func TestSubscribeRejected(t *testing.T) {
	_, c := startFeed(t, allowRooms{})

	_, err := c.Subscribe(context.Background(), uuid.New(), func(domain.Message) {})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestSubscribeBadToken(t *testing.T) {
	_, c := startFeed(t, allowRooms{})
	c.Token = "garbage"

	_, err := c.Subscribe(context.Background(), uuid.New(), func(domain.Message) {})
	require.Error(t, err)
}

func TestFeedURL(t *testing.T) {
	c := New("https://parts.example/base/")
	c.Token = "a b"
	u, err := c.feedURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://parts.example/base/ws?token=a+b", u)
}
