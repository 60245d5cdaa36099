package chat

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImagesBucket holds every image attached to a conversation.
const ImagesBucket = "chat-images"

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Storage is an object store with public read URLs. Upload returns the URL
// the store assigned, or "" when callers should build it with PublicURL.
type Storage interface {
	Upload(ctx context.Context, bucket, objectPath string, body io.Reader, size int64, contentType string) (string, error)
	PublicURL(bucket, objectPath string) string
}

// Uploader puts conversation images into the images bucket under a
// per-room prefix.
type Uploader struct {
	storage Storage
	now     func() time.Time
	token   func() (string, error)
}

func NewUploader(storage Storage) *Uploader {
	return &Uploader{
		storage: storage,
		now:     time.Now,
		token:   randomToken,
	}
}

// ObjectPath returns <roomID>/<unixMillis>-<token>.<ext>. The extension is
// taken from filename and lowercased; a name without one gets "bin".
func ObjectPath(roomID uuid.UUID, now time.Time, token, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d-%s.%s", roomID, now.UnixMilli(), token, ext)
}

// Upload stores a and returns the public URL of the new object.
func (u *Uploader) Upload(ctx context.Context, roomID uuid.UUID, a Attachment) (string, error) {
	if a.Size > MaxAttachmentBytes {
		return "", ErrAttachmentTooLarge
	}
	token, err := u.token()
	if err != nil {
		return "", fmt.Errorf("generating object name: %w", err)
	}
	objectPath := ObjectPath(roomID, u.now(), token, a.Name)

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := u.storage.Upload(ctx, ImagesBucket, objectPath, a.Body, a.Size, contentType)
	if err != nil {
		return "", err
	}
	if url == "" {
		url = u.storage.PublicURL(ImagesBucket, objectPath)
	}
	return url, nil
}

func randomToken() (string, error) {
	const n = 6
	max := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[v.Int64()]
	}
	return string(b), nil
}
