package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
	"github.com/creatorsgardenofficial/garden-messaging/internal/repository"
)

// DirectoryService exposes the user directory to clients (invite
// pickers, profile rendering). Read-only by design.
type DirectoryService struct {
	userRepo repository.UserDirectory
}

func NewDirectoryService(userRepo repository.UserDirectory) *DirectoryService {
	return &DirectoryService{userRepo: userRepo}
}

func (s *DirectoryService) Get(ctx context.Context, id uuid.UUID) (*domain.UserSummary, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	summary := user.Summary()
	return &summary, nil
}

func (s *DirectoryService) Search(ctx context.Context, query string, limit int) ([]domain.UserSummary, error) {
	users, err := s.userRepo.SearchByUsername(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}
