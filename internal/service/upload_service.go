package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/onionparts/internal/metrics"
	"github.com/vedran77/onionparts/internal/storage"
)

const (
	ChatImagesBucket    = "chat-images"
	ProductImagesBucket = "product-images"
)

var (
	ErrUnknownBucket  = errors.New("unknown storage bucket")
	ErrObjectTooLarge = errors.New("object exceeds the bucket size limit")
	ErrNotAnImage     = errors.New("only image uploads are accepted")
)

// ObjectStore is the blob storage behind uploads.
type ObjectStore interface {
	Put(ctx context.Context, bucket, path, contentType string, data []byte) error
	Get(ctx context.Context, bucket, path string) (*storage.Object, error)
	PublicURL(bucket, path string) string
}

type UploadService struct {
	store    ObjectStore
	rooms    *RoomService
	products *ProductService
	limits   map[string]int64
}

func NewUploadService(store ObjectStore, rooms *RoomService, products *ProductService, chatMax, productMax int64) *UploadService {
	return &UploadService{
		store:    store,
		rooms:    rooms,
		products: products,
		limits: map[string]int64{
			ChatImagesBucket:    chatMax,
			ProductImagesBucket: productMax,
		},
	}
}

type UploadResponse struct {
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
	PublicURL string `json:"public_url"`
}

// Limit returns the size limit of bucket, or 0 when the bucket is unknown.
func (s *UploadService) Limit(bucket string) int64 {
	return s.limits[bucket]
}

// Upload stores an image. Chat images must live under a room the caller
// takes part in; product images are admin only.
func (s *UploadService) Upload(ctx context.Context, userID uuid.UUID, bucket, path, contentType string, data []byte) (*UploadResponse, error) {
	limit, ok := s.limits[bucket]
	if !ok {
		return nil, ErrUnknownBucket
	}
	if int64(len(data)) > limit {
		return nil, ErrObjectTooLarge
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}

	switch bucket {
	case ChatImagesBucket:
		roomPart, _, _ := strings.Cut(path, "/")
		roomID, err := uuid.Parse(roomPart)
		if err != nil {
			return nil, storage.ErrInvalidPath
		}
		if _, err := s.rooms.Authorize(ctx, userID, roomID); err != nil {
			return nil, err
		}
	case ProductImagesBucket:
		if err := s.products.RequireAdmin(ctx, userID); err != nil {
			return nil, err
		}
	}

	if err := s.store.Put(ctx, bucket, path, contentType, data); err != nil {
		return nil, fmt.Errorf("storing %s/%s: %w", bucket, path, err)
	}
	metrics.UploadedBytes.WithLabelValues(bucket).Add(float64(len(data)))

	return &UploadResponse{
		Bucket:    bucket,
		Path:      path,
		PublicURL: s.store.PublicURL(bucket, path),
	}, nil
}

// Download returns a stored object. Objects are public once uploaded.
func (s *UploadService) Download(ctx context.Context, bucket, path string) (*storage.Object, error) {
	if _, ok := s.limits[bucket]; !ok {
		return nil, ErrUnknownBucket
	}
	return s.store.Get(ctx, bucket, path)
}
