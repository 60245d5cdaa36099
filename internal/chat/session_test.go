package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/onionparts/internal/domain"
)

type fakeBackend struct {
	mu       sync.Mutex
	inserted []NewMessage
	insert   func(NewMessage) (*domain.Message, error)
	leaveErr error
	left     []uuid.UUID
}

func (b *fakeBackend) InsertMessage(_ context.Context, msg NewMessage) (*domain.Message, error) {
	b.mu.Lock()
	b.inserted = append(b.inserted, msg)
	b.mu.Unlock()
	if b.insert != nil {
		return b.insert(msg)
	}
	return &domain.Message{
		ID:       uuid.New(),
		RoomID:   msg.RoomID,
		SenderID: msg.SenderID,
		Content:  msg.Content,
		Kind:     msg.Kind,
		ImageURL: msg.ImageURL,
	}, nil
}

func (b *fakeBackend) LeaveRoom(_ context.Context, roomID uuid.UUID) error {
	b.left = append(b.left, roomID)
	return b.leaveErr
}

type fakeSub struct {
	once   sync.Once
	done   chan struct{}
	err    error
	closed int
}

func newFakeSub() *fakeSub { return &fakeSub{done: make(chan struct{})} }

func (s *fakeSub) Close() error {
	s.closed++
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSub) Done() <-chan struct{} { return s.done }
func (s *fakeSub) Err() error            { return s.err }

func (s *fakeSub) drop(err error) {
	s.err = err
	s.once.Do(func() { close(s.done) })
}

type fakeFeed struct {
	onInsert func(domain.Message)
	sub      *fakeSub
	err      error
	calls    int
}

func (f *fakeFeed) Subscribe(_ context.Context, _ uuid.UUID, onInsert func(domain.Message)) (Subscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.onInsert = onInsert
	f.sub = newFakeSub()
	return f.sub, nil
}

type fakeUploader struct {
	calls   int
	url     string
	err     error
	started chan struct{}
	release chan struct{}
}

func (u *fakeUploader) Upload(_ context.Context, _ uuid.UUID, _ Attachment) (string, error) {
	u.calls++
	if u.started != nil {
		close(u.started)
		<-u.release
	}
	return u.url, u.err
}

type recorder struct {
	mu       sync.Mutex
	messages []domain.Message
	errs     []error
	routes   []string
}

func (r *recorder) OnMessage(m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) Navigate(route string) { r.routes = append(r.routes, route) }

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type harness struct {
	room     uuid.UUID
	user     uuid.UUID
	backend  *fakeBackend
	feed     *fakeFeed
	uploader *fakeUploader
	rec      *recorder
	session  *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		room:     uuid.New(),
		user:     uuid.New(),
		backend:  &fakeBackend{},
		feed:     &fakeFeed{},
		uploader: &fakeUploader{url: "http://localhost/storage/v1/object/public/chat-images/x.png"},
		rec:      &recorder{},
	}
	h.session = NewSession(Config{
		RoomID:    h.room,
		UserID:    h.user,
		Backend:   h.backend,
		Feed:      h.feed,
		Uploader:  h.uploader,
		Navigator: h.rec,
		Listener:  h.rec,
	})
	t.Cleanup(func() { _ = h.session.Close() })
	return h
}

func (h *harness) msg(content string) domain.Message {
	return domain.Message{ID: uuid.New(), RoomID: h.room, SenderID: h.user, Content: content, Kind: domain.MessageKindText}
}

func contents(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestSnapshotThenLiveAppend(t *testing.T) {
	h := newHarness(t)
	m1, m2, m3 := h.msg("1"), h.msg("2"), h.msg("3")

	require.NoError(t, h.session.Open(context.Background(), []domain.Message{m1, m2}))
	h.feed.onInsert(m3)

	assert.Equal(t, []string{"1", "2", "3"}, contents(h.session.Messages()))
	require.Len(t, h.rec.messages, 1)
	assert.Equal(t, m3.ID, h.rec.messages[0].ID)
}

func TestDuplicateLiveEventSuppressed(t *testing.T) {
	h := newHarness(t)
	m1, m2 := h.msg("1"), h.msg("2")

	require.NoError(t, h.session.Open(context.Background(), []domain.Message{m1}))
	h.feed.onInsert(m2)
	h.feed.onInsert(m2)

	assert.Equal(t, []string{"1", "2"}, contents(h.session.Messages()))
	assert.Len(t, h.rec.messages, 1)
}

func TestMergeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	m := h.msg("hello")

	assert.True(t, h.session.OnRemoteInsert(m))
	for i := 0; i < 5; i++ {
		assert.False(t, h.session.OnRemoteInsert(m))
	}
	assert.Len(t, h.session.Messages(), 1)
}

func TestOtherRoomIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	m := h.msg("elsewhere")
	m.RoomID = uuid.New()

	assert.False(t, h.session.OnRemoteInsert(m))
	assert.Empty(t, h.session.Messages())
}

func TestSnapshotDuplicatesKeepFirst(t *testing.T) {
	h := newHarness(t)
	m := h.msg("first")
	dup := m
	dup.Content = "second"

	require.NoError(t, h.session.Initialize([]domain.Message{m, dup}))
	assert.Equal(t, []string{"first"}, contents(h.session.Messages()))
}

func TestInitializeTwice(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	assert.ErrorIs(t, h.session.Initialize(nil), ErrAlreadyInitialized)
}

func TestSubscribeTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session.Subscribe(ctx))
	assert.ErrorIs(t, h.session.Subscribe(ctx), ErrAlreadySubscribed)
	assert.Equal(t, 1, h.feed.calls)
}

func TestSubscribeError(t *testing.T) {
	h := newHarness(t)
	h.feed.err = errors.New("dial failed")
	err := h.session.Subscribe(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, h.feed.err)
}

func TestCloseReleasesSubscription(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Subscribe(context.Background()))

	require.NoError(t, h.session.Close())
	require.NoError(t, h.session.Close())
	assert.Equal(t, 1, h.feed.sub.closed)
	assert.ErrorIs(t, h.session.Subscribe(context.Background()), ErrFeedClosed)

	// Closing on purpose is not reported as a failure.
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, h.rec.errors())
}

func TestDroppedFeedReported(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Subscribe(context.Background()))

	cause := errors.New("connection reset")
	h.feed.sub.drop(cause)

	require.Eventually(t, func() bool { return len(h.rec.errors()) == 1 }, time.Second, 5*time.Millisecond)
	err := h.rec.errors()[0]
	assert.ErrorIs(t, err, ErrFeedClosed)
	assert.ErrorIs(t, err, cause)
}

func TestLocalEchoThenPush(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Open(context.Background(), nil))

	var stored *domain.Message
	h.backend.insert = func(nm NewMessage) (*domain.Message, error) {
		stored = &domain.Message{ID: uuid.New(), RoomID: nm.RoomID, SenderID: nm.SenderID, Content: nm.Content, Kind: nm.Kind}
		return stored, nil
	}

	require.NoError(t, h.session.SendText(context.Background(), "hi"))
	h.feed.onInsert(*stored)

	assert.Equal(t, []string{"hi"}, contents(h.session.Messages()))
}

func TestPushThenLocalEcho(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Open(context.Background(), nil))

	// The push event arrives while the insert call is still in flight.
	h.backend.insert = func(nm NewMessage) (*domain.Message, error) {
		stored := &domain.Message{ID: uuid.New(), RoomID: nm.RoomID, SenderID: nm.SenderID, Content: nm.Content, Kind: nm.Kind}
		h.feed.onInsert(*stored)
		return stored, nil
	}

	require.NoError(t, h.session.SendText(context.Background(), "hi"))

	assert.Equal(t, []string{"hi"}, contents(h.session.Messages()))
	assert.Len(t, h.rec.messages, 1)
}

func TestSendTextTrimsAndClearsDraft(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	h.session.SetDraft("  hello  ")

	require.NoError(t, h.session.Submit(context.Background()))

	assert.Equal(t, "", h.session.Draft())
	require.Len(t, h.backend.inserted, 1)
	sent := h.backend.inserted[0]
	assert.Equal(t, "hello", sent.Content)
	assert.Equal(t, domain.MessageKindText, sent.Kind)
	assert.Equal(t, h.room, sent.RoomID)
	assert.Equal(t, h.user, sent.SenderID)
	assert.Equal(t, []string{"hello"}, contents(h.session.Messages()))
}

func TestSendTextEmpty(t *testing.T) {
	h := newHarness(t)
	h.session.SetDraft("   ")

	assert.ErrorIs(t, h.session.Submit(context.Background()), ErrEmptyMessage)
	assert.Empty(t, h.backend.inserted)
	assert.Equal(t, "   ", h.session.Draft())
	assert.Empty(t, h.rec.errors())
}

func TestSendTextFailureRestoresDraft(t *testing.T) {
	h := newHarness(t)
	m1 := h.msg("1")
	require.NoError(t, h.session.Initialize([]domain.Message{m1}))
	boom := errors.New("insert failed")
	h.backend.insert = func(NewMessage) (*domain.Message, error) { return nil, boom }
	h.session.SetDraft("hello")

	err := h.session.Submit(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "hello", h.session.Draft())
	assert.Equal(t, []string{"1"}, contents(h.session.Messages()))
	require.Len(t, h.rec.errors(), 1)
	assert.ErrorIs(t, h.rec.errors()[0], boom)
}

func TestSendTextFailureKeepsUnsentText(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	h.backend.insert = func(NewMessage) (*domain.Message, error) { return nil, errors.New("offline") }

	err := h.session.SendText(context.Background(), "  hello ")

	require.Error(t, err)
	assert.Equal(t, "hello", h.session.Draft())
	assert.Empty(t, h.session.Messages())
	assert.Len(t, h.rec.errors(), 1)
}

func TestSendTextFailureKeepsNewerDraft(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	h.backend.insert = func(NewMessage) (*domain.Message, error) {
		h.session.SetDraft("still typing")
		return nil, errors.New("offline")
	}

	require.Error(t, h.session.SendText(context.Background(), "hello"))
	assert.Equal(t, "still typing", h.session.Draft())
}

func TestSendImageTooLarge(t *testing.T) {
	h := newHarness(t)
	err := h.session.SendImage(context.Background(), Attachment{Name: "big.png", Size: MaxAttachmentBytes + 1})

	assert.ErrorIs(t, err, ErrAttachmentTooLarge)
	assert.Equal(t, 0, h.uploader.calls)
	assert.Empty(t, h.backend.inserted)
	assert.False(t, h.session.Uploading())
	require.Len(t, h.rec.errors(), 1)
}

func TestSendImageExactlyAtLimit(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))

	err := h.session.SendImage(context.Background(), Attachment{Name: "ok.png", Size: MaxAttachmentBytes})
	require.NoError(t, err)
	assert.Equal(t, 1, h.uploader.calls)
}

func TestSendImage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))

	err := h.session.SendImage(context.Background(), Attachment{Name: "cat.png", Size: 3, Body: bytes.NewReader([]byte("png"))})
	require.NoError(t, err)

	require.Len(t, h.backend.inserted, 1)
	sent := h.backend.inserted[0]
	assert.Equal(t, domain.MessageKindImage, sent.Kind)
	assert.Equal(t, domain.ImagePlaceholder, sent.Content)
	require.NotNil(t, sent.ImageURL)
	assert.Equal(t, h.uploader.url, *sent.ImageURL)

	msgs := h.session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageKindImage, msgs[0].Kind)
	assert.False(t, h.session.Uploading())
}

func TestSendImageUploadFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	h.uploader.err = errors.New("storage unavailable")

	err := h.session.SendImage(context.Background(), Attachment{Name: "cat.png", Size: 3})

	assert.ErrorIs(t, err, h.uploader.err)
	assert.Empty(t, h.backend.inserted)
	assert.Empty(t, h.session.Messages())
	assert.False(t, h.session.Uploading())
	assert.Len(t, h.rec.errors(), 1)
}

func TestSendImageInsertFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	boom := errors.New("insert failed")
	h.backend.insert = func(NewMessage) (*domain.Message, error) { return nil, boom }

	err := h.session.SendImage(context.Background(), Attachment{Name: "cat.png", Size: 3})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, h.session.Messages())
	assert.False(t, h.session.Uploading())
}

func TestSendImageWhileUploading(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize(nil))
	h.uploader.started = make(chan struct{})
	h.uploader.release = make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		errc <- h.session.SendImage(context.Background(), Attachment{Name: "a.png", Size: 1})
	}()
	<-h.uploader.started

	assert.True(t, h.session.Uploading())
	assert.ErrorIs(t, h.session.SendImage(context.Background(), Attachment{Name: "b.png", Size: 1}), ErrUploadInFlight)
	require.Len(t, h.rec.errors(), 1)
	assert.ErrorIs(t, h.rec.errors()[0], ErrUploadInFlight)

	close(h.uploader.release)
	require.NoError(t, <-errc)
	assert.False(t, h.session.Uploading())
	assert.Equal(t, 1, h.uploader.calls)
}

func TestLeaveNavigates(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Leave(context.Background()))
	assert.Equal(t, []uuid.UUID{h.room}, h.backend.left)
	assert.Equal(t, []string{ChatsRoute}, h.rec.routes)
}

func TestLeaveFailureStays(t *testing.T) {
	h := newHarness(t)
	h.backend.leaveErr = errors.New("rpc failed")

	err := h.session.Leave(context.Background())

	assert.ErrorIs(t, err, h.backend.leaveErr)
	assert.Empty(t, h.rec.routes)
	require.Len(t, h.rec.errors(), 1)
}

func TestMessagesReturnsCopy(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Initialize([]domain.Message{h.msg("1")}))

	msgs := h.session.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "1", h.session.Messages()[0].Content)
}

type memStorage struct {
	bucket, path, contentType string
	body                      []byte
	url                       string
	err                       error
}

func (s *memStorage) Upload(_ context.Context, bucket, objectPath string, body io.Reader, _ int64, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.bucket, s.path, s.contentType = bucket, objectPath, contentType
	if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		s.body = b
	}
	return s.url, nil
}

func (s *memStorage) PublicURL(bucket, objectPath string) string {
	return "http://cdn/" + bucket + "/" + objectPath
}

func TestObjectPath(t *testing.T) {
	room := uuid.MustParse("7c1e2a44-0d4b-4a8e-9f63-2a2b8f5c9d10")
	now := time.UnixMilli(1700000000123)

	assert.Equal(t, room.String()+"/1700000000123-abc123.png", ObjectPath(room, now, "abc123", "Photo.PNG"))
	assert.Equal(t, room.String()+"/1700000000123-abc123.bin", ObjectPath(room, now, "abc123", "noext"))
}

func TestUploader(t *testing.T) {
	store := &memStorage{}
	u := NewUploader(store)
	u.now = func() time.Time { return time.UnixMilli(42) }
	u.token = func() (string, error) { return "zz9", nil }
	room := uuid.New()

	url, err := u.Upload(context.Background(), room, Attachment{
		Name:        "cat.jpg",
		ContentType: "image/jpeg",
		Size:        3,
		Body:        bytes.NewReader([]byte("jpg")),
	})
	require.NoError(t, err)

	wantPath := room.String() + "/42-zz9.jpg"
	assert.Equal(t, ImagesBucket, store.bucket)
	assert.Equal(t, wantPath, store.path)
	assert.Equal(t, "image/jpeg", store.contentType)
	assert.Equal(t, []byte("jpg"), store.body)
	assert.Equal(t, "http://cdn/chat-images/"+wantPath, url)
}

func TestUploaderPrefersStoreURL(t *testing.T) {
	store := &memStorage{url: "https://cdn.example/assigned.png"}
	url, err := NewUploader(store).Upload(context.Background(), uuid.New(), Attachment{Name: "a.png", Size: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/assigned.png", url)
}

func TestUploaderStorageError(t *testing.T) {
	store := &memStorage{err: errors.New("conflict")}
	_, err := NewUploader(store).Upload(context.Background(), uuid.New(), Attachment{Name: "a.png", Size: 1})
	assert.ErrorIs(t, err, store.err)
}

func TestRandomToken(t *testing.T) {
	tok, err := randomToken()
	require.NoError(t, err)
	assert.Len(t, tok, 6)
	assert.Regexp(t, "^[0-9a-z]+$", tok)
}
