package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory("http://parts.test/")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "chat-images", "room/1-abc.png", "image/png", []byte("png")))

	obj, err := s.Get(ctx, "chat-images", "room/1-abc.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte("png"), obj.Data)
	assert.Equal(t, int64(3), obj.Size)
}

func TestPutIsWriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "chat-images", "a/b.jpg", "image/jpeg", []byte("1")))
	err := s.Put(ctx, "chat-images", "a/b.jpg", "image/jpeg", []byte("2"))
	assert.ErrorIs(t, err, ErrExists)

	obj, err := s.Get(ctx, "chat-images", "a/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), obj.Data)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "chat-images", "nope.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBucketsAreSeparate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "chat-images", "x.png", "image/png", []byte("chat")))
	_, err := s.Get(ctx, "product-images", "x.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, path := range []string{"", "/abs.png", "a/../b.png", "a//b.png", "./x.png"} {
		err := s.Put(ctx, "chat-images", path, "image/png", []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, path)
	}
	assert.ErrorIs(t, s.Put(ctx, "a/b", "x.png", "image/png", nil), ErrInvalidPath)
}

func TestPublicURL(t *testing.T) {
	s := newTestStore(t)

	got := s.PublicURL("chat-images", "room-1/17000-ab c.png")
	assert.Equal(t, "http://parts.test/storage/v1/object/public/chat-images/room-1/17000-ab%20c.png", got)
}

func TestConcurrentPutsSamePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Put(ctx, "chat-images", "room/race.png", "image/png", []byte(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one write succeeded")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, ErrExists)
	}
	require.NotEqual(t, -1, winner)

	obj, err := s.Get(ctx, "chat-images", "room/race.png")
	require.NoError(t, err)
	assert.Equal(t, []byte(fmt.Sprint(winner)), obj.Data)
}
