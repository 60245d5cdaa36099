// Package chat keeps one conversation's message log in sync with the
// platform: the initial snapshot, live inserts pushed by the feed and the
// user's own sends all pass through a single id-keyed merge.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/domain"
)

// ChatsRoute is where a session navigates after leaving its room.
const ChatsRoute = "/chats"

// MaxAttachmentBytes is the largest image a session will upload.
const MaxAttachmentBytes = 5 << 20

var (
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrAlreadySubscribed  = errors.New("session already subscribed")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrAttachmentTooLarge = errors.New("attachment exceeds 5MB")
	ErrUploadInFlight     = errors.New("an image upload is already in progress")
	ErrFeedClosed         = errors.New("live feed closed")
)

// NewMessage is what a session asks the backend to persist.
type NewMessage struct {
	RoomID   uuid.UUID
	SenderID uuid.UUID
	Content  string
	Kind     domain.MessageKind
	ImageURL *string
}

// Backend persists messages and room membership changes.
type Backend interface {
	// InsertMessage stores msg and returns the row as persisted, id included.
	InsertMessage(ctx context.Context, msg NewMessage) (*domain.Message, error)
	LeaveRoom(ctx context.Context, roomID uuid.UUID) error
}

// Subscription is a live feed handle. Done is closed when the feed stops,
// whether through Close or because the connection dropped; Err then
// reports why.
type Subscription interface {
	Close() error
	Done() <-chan struct{}
	Err() error
}

// Feed delivers messages inserted into a room after Subscribe returns.
type Feed interface {
	Subscribe(ctx context.Context, roomID uuid.UUID, onInsert func(domain.Message)) (Subscription, error)
}

// ImageUploader stores an attachment and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, roomID uuid.UUID, a Attachment) (string, error)
}

type Navigator interface {
	Navigate(route string)
}

// Listener receives presentation hooks. Both methods may be called from a
// feed goroutine and must not call back into the session synchronously.
type Listener interface {
	OnMessage(msg domain.Message)
	OnError(err error)
}

// Attachment is an image picked by the user.
type Attachment struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Config struct {
	RoomID    uuid.UUID
	UserID    uuid.UUID
	Backend   Backend
	Feed      Feed
	Uploader  ImageUploader
	Navigator Navigator
	Listener  Listener
}

// Session is the state of one open conversation view.
type Session struct {
	cfg Config

	mu          sync.Mutex
	log         []domain.Message
	seen        map[uuid.UUID]struct{}
	draft       string
	uploading   bool
	initialized bool
	sub         Subscription
	closed      bool
}

func NewSession(cfg Config) *Session {
	if cfg.Listener == nil {
		cfg.Listener = nopListener{}
	}
	if cfg.Navigator == nil {
		cfg.Navigator = nopNavigator{}
	}
	return &Session{
		cfg:  cfg,
		seen: make(map[uuid.UUID]struct{}),
	}
}

func (s *Session) RoomID() uuid.UUID { return s.cfg.RoomID }

// Initialize sets the log from the server snapshot, keeping its order.
func (s *Session) Initialize(snapshot []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.initialized = true
	for _, m := range snapshot {
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		s.seen[m.ID] = struct{}{}
		s.log = append(s.log, m)
	}
	return nil
}

// Subscribe attaches the session to the room's live feed.
func (s *Session) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return ErrAlreadySubscribed
	}
	if s.closed {
		s.mu.Unlock()
		return ErrFeedClosed
	}
	s.mu.Unlock()

	sub, err := s.cfg.Feed.Subscribe(ctx, s.cfg.RoomID, func(m domain.Message) {
		s.OnRemoteInsert(m)
	})
	if err != nil {
		return fmt.Errorf("subscribing to room %s: %w", s.cfg.RoomID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil || s.closed {
		// Lost a race with another Subscribe or with Close.
		_ = sub.Close()
		if s.closed {
			return ErrFeedClosed
		}
		return ErrAlreadySubscribed
	}
	s.sub = sub
	go s.watch(sub)
	return nil
}

// watch reports a feed that stopped without the session closing it. The
// log keeps what it has; the next snapshot fills any gap.
func (s *Session) watch(sub Subscription) {
	<-sub.Done()

	s.mu.Lock()
	current := s.sub == sub
	if current {
		s.sub = nil
	}
	s.mu.Unlock()

	if !current {
		return
	}
	err := ErrFeedClosed
	if cause := sub.Err(); cause != nil {
		err = fmt.Errorf("%w: %w", ErrFeedClosed, cause)
	}
	s.cfg.Listener.OnError(err)
}

// Open initializes the log and subscribes in one step.
func (s *Session) Open(ctx context.Context, snapshot []domain.Message) error {
	if err := s.Initialize(snapshot); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close releases the live feed. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.closed = true
	s.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Close()
}

// OnRemoteInsert merges a message into the log. It reports whether the
// message was appended; inserts for other rooms and known ids are dropped.
func (s *Session) OnRemoteInsert(msg domain.Message) bool {
	if !s.merge(msg) {
		return false
	}
	s.cfg.Listener.OnMessage(msg)
	return true
}

func (s *Session) merge(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.RoomID != s.cfg.RoomID {
		return false
	}
	if _, ok := s.seen[msg.ID]; ok {
		return false
	}
	s.seen[msg.ID] = struct{}{}
	s.log = append(s.log, msg)
	return true
}

func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Submit sends the current draft.
func (s *Session) Submit(ctx context.Context) error {
	return s.SendText(ctx, s.Draft())
}

// SendText clears the draft, persists content and merges the stored row.
// On failure the unsent text becomes the draft again and the log is left as
// it was.
func (s *Session) SendText(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	previous := s.draft
	s.draft = ""
	s.mu.Unlock()

	msg, err := s.cfg.Backend.InsertMessage(ctx, NewMessage{
		RoomID:   s.cfg.RoomID,
		SenderID: s.cfg.UserID,
		Content:  content,
		Kind:     domain.MessageKindText,
	})
	if err != nil {
		// Submit passes the draft itself; keep its original spacing.
		restore := content
		if strings.TrimSpace(previous) == content {
			restore = previous
		}
		s.mu.Lock()
		if s.draft == "" {
			s.draft = restore
		}
		s.mu.Unlock()
		return s.fail(fmt.Errorf("sending message: %w", err))
	}

	s.OnRemoteInsert(*msg)
	return nil
}

// SendImage uploads a and posts an image message pointing at it.
func (s *Session) SendImage(ctx context.Context, a Attachment) error {
	if a.Size > MaxAttachmentBytes {
		return s.fail(ErrAttachmentTooLarge)
	}

	s.mu.Lock()
	if s.uploading {
		s.mu.Unlock()
		return s.fail(ErrUploadInFlight)
	}
	s.uploading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.uploading = false
		s.mu.Unlock()
	}()

	url, err := s.cfg.Uploader.Upload(ctx, s.cfg.RoomID, a)
	if err != nil {
		return s.fail(fmt.Errorf("uploading image: %w", err))
	}

	msg, err := s.cfg.Backend.InsertMessage(ctx, NewMessage{
		RoomID:   s.cfg.RoomID,
		SenderID: s.cfg.UserID,
		Content:  domain.ImagePlaceholder,
		Kind:     domain.MessageKindImage,
		ImageURL: &url,
	})
	if err != nil {
		return s.fail(fmt.Errorf("sending image message: %w", err))
	}

	s.OnRemoteInsert(*msg)
	return nil
}

// Leave leaves the room and navigates back to the room list. On failure
// the session stays where it is.
func (s *Session) Leave(ctx context.Context) error {
	if err := s.cfg.Backend.LeaveRoom(ctx, s.cfg.RoomID); err != nil {
		return s.fail(fmt.Errorf("leaving room: %w", err))
	}
	s.cfg.Navigator.Navigate(ChatsRoute)
	return nil
}

// Messages returns a copy of the log.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Session) Uploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading
}

func (s *Session) fail(err error) error {
	s.cfg.Listener.OnError(err)
	return err
}

type nopListener struct{}

func (nopListener) OnMessage(domain.Message) {}
func (nopListener) OnError(error)            {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
