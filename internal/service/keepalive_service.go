package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vedran77/onionparts/internal/repository"
)

type KeepAliveResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	DBResponse string    `json:"db_response"`
}

// KeepAliveService runs a lightweight query so an idle database stays warm.
type KeepAliveService struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

func NewKeepAliveService(userRepo repository.UserRepository) *KeepAliveService {
	return &KeepAliveService{userRepo: userRepo, now: time.Now}
}

func (s *KeepAliveService) Ping(ctx context.Context) (*KeepAliveResponse, error) {
	if _, err := s.userRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("keep-alive query: %w", err)
	}
	return &KeepAliveResponse{
		Status:     "alive",
		Timestamp:  s.now().UTC(),
		DBResponse: "ok",
	}, nil
}
