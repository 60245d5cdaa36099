// Package client talks to the platform API over HTTP and the live feed
// over a websocket. A *Client satisfies chat.Backend, chat.Storage and
// chat.Feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/chat"
	"github.com/vedran77/onionparts/internal/domain"
)

// APIError is the platform's error envelope.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api error %d: %s: %s", e.Status, e.Code, e.Message)
}

// AuthResult is returned by Login.
type AuthResult struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"access_token"`
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

var (
	_ chat.Backend = (*Client)(nil)
	_ chat.Storage = (*Client)(nil)
	_ chat.Feed    = (*Client)(nil)
)

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.Token = out.AccessToken
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rooms lists the caller's active conversations.
func (c *Client) Rooms(ctx context.Context) ([]domain.ChatRoom, error) {
	var out []domain.ChatRoom
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RoomView fetches a room together with its message snapshot.
func (c *Client) RoomView(ctx context.Context, roomID uuid.UUID) (*domain.RoomView, error) {
	var out domain.RoomView
	if err := c.do(ctx, http.MethodGet, "/api/v1/rooms/"+roomID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenRoom returns the caller's room for a product, creating it if needed.
func (c *Client) OpenRoom(ctx context.Context, productID uuid.UUID) (*domain.ChatRoom, error) {
	var out domain.ChatRoom
	if err := c.do(ctx, http.MethodPost, "/api/v1/products/"+productID.String()+"/rooms", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InsertMessage(ctx context.Context, msg chat.NewMessage) (*domain.Message, error) {
	body := struct {
		Content  string             `json:"content"`
		Kind     domain.MessageKind `json:"message_type"`
		ImageURL *string            `json:"image_url,omitempty"`
	}{msg.Content, msg.Kind, msg.ImageURL}

	var out domain.Message
	if err := c.do(ctx, http.MethodPost, "/api/v1/rooms/"+msg.RoomID.String()+"/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LeaveRoom(ctx context.Context, roomID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/rooms/"+roomID.String()+"/leave", nil, nil)
}

// Upload stores body at bucket/objectPath and returns the public URL the
// server reported. The server rejects existing paths.
func (c *Client) Upload(ctx context.Context, bucket, objectPath string, body io.Reader, size int64, contentType string) (string, error) {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+"/storage/v1/object/"+bucket+"/"+escapePath(objectPath), body)
	if err != nil {
		return "", err
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set("Content-Type", contentType)

	var out struct {
		PublicURL string `json:"public_url"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.PublicURL, nil
}

// PublicURL returns the default public path of an object.
func (c *Client) PublicURL(bucket, objectPath string) string {
	return c.BaseURL + "/storage/v1/object/public/" + bucket + "/" + escapePath(objectPath)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	var envelope struct {
		Error *APIError `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
		envelope.Error.Status = resp.StatusCode
		return envelope.Error
	}
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
