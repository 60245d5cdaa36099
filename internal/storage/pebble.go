// Package storage keeps uploaded objects (chat attachments, product photos)
// in a Pebble key-value store addressed by bucket and path.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrInvalidPath = errors.New("invalid object path")
)

// Object is a stored blob with its metadata.
type Object struct {
	Bucket      string    `json:"bucket"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store struct {
	db      *pebble.DB
	baseURL string

	// writeMu makes the existence check and the write in Put one step.
	writeMu sync.Mutex
}

// Open opens (or creates) the object store at dir. publicBaseURL is the
// externally reachable server address used to build public URLs.
func Open(dir, publicBaseURL string) (*Store, error) {
	return open(dir, &pebble.Options{}, publicBaseURL)
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory(publicBaseURL string) (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()}, publicBaseURL)
}

func open(dir string, opts *pebble.Options, publicBaseURL string) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("opening object store: %w", err)
	}
	return &Store{db: db, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores data under bucket/path. Paths are write-once.
func (s *Store) Put(ctx context.Context, bucket, path, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := objectKey(bucket, path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, closer, err := s.db.Get(key)
	if err == nil {
		closer.Close()
		return ErrExists
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	obj := Object{
		Bucket:      bucket,
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encoding object: %w", err)
	}
	return s.db.Set(key, encoded, pebble.Sync)
}

func (s *Store) Get(ctx context.Context, bucket, path string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := objectKey(bucket, path)
	if err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var obj Object
	if err := json.Unmarshal(value, &obj); err != nil {
		return nil, fmt.Errorf("decoding object %s/%s: %w", bucket, path, err)
	}
	return &obj, nil
}

// PublicURL returns the address the object is served from.
func (s *Store) PublicURL(bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(bucket), strings.Join(segments, "/"))
}

func objectKey(bucket, path string) ([]byte, error) {
	if bucket == "" || strings.Contains(bucket, "/") {
		return nil, ErrInvalidPath
	}
	if path == "" || strings.HasPrefix(path, "/") {
		return nil, ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return nil, ErrInvalidPath
		}
	}
	return []byte("obj/" + bucket + "/" + path), nil
}
