package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/vedran77/onionparts/internal/service"
	"github.com/vedran77/onionparts/internal/storage"
	"github.com/vedran77/onionparts/internal/transport/http/middleware"
)

type StorageHandler struct {
	uploadService *service.UploadService
}

func NewStorageHandler(uploadService *service.UploadService) *StorageHandler {
	return &StorageHandler{uploadService: uploadService}
}

// Upload stores the raw request body at {bucket}/{path...}.
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	bucket, path := r.PathValue("bucket"), r.PathValue("path")

	limit := h.uploadService.Limit(bucket)
	if limit == 0 {
		writeError(w, http.StatusNotFound, "BUCKET_NOT_FOUND", "Bucket not found")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read upload")
		return
	}

	resp, err := h.uploadService.Upload(r.Context(), userID, bucket, path, r.Header.Get("Content-Type"), data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrObjectTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "File is too large")
		case errors.Is(err, service.ErrNotAnImage):
			writeError(w, http.StatusUnsupportedMediaType, "NOT_AN_IMAGE", "Only images can be uploaded")
		case errors.Is(err, storage.ErrInvalidPath):
			writeError(w, http.StatusBadRequest, "INVALID_PATH", "Invalid object path")
		case errors.Is(err, storage.ErrExists):
			writeError(w, http.StatusConflict, "OBJECT_EXISTS", "An object already exists at this path")
		case errors.Is(err, service.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "Room not found")
		case errors.Is(err, service.ErrNotAdmin):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Only admins can upload product images")
		default:
			writeInternal(w, "upload object", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Download serves a public object.
func (h *StorageHandler) Download(w http.ResponseWriter, r *http.Request) {
	obj, err := h.uploadService.Download(r.Context(), r.PathValue("bucket"), r.PathValue("path"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownBucket), errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidPath):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Object not found")
		default:
			writeInternal(w, "download object", err)
		}
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}
