package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsgardenofficial/garden-messaging/internal/domain"
	"github.com/creatorsgardenofficial/garden-messaging/internal/repository"
)

var ErrCannotBlockSelf = errors.New("cannot block yourself")

type BlockService struct {
	blockRepo repository.BlockRepository
	userRepo  repository.UserDirectory
}

func NewBlockService(blockRepo repository.BlockRepository, userRepo repository.UserDirectory) *BlockService {
	return &BlockService{
		blockRepo: blockRepo,
		userRepo:  userRepo,
	}
}

// Block records a directed block. Blocking twice is a no-op. Existing
// conversation history is untouched: the relation only vetoes future
// direct sends and hides the thread from the blocker's listing.
func (s *BlockService) Block(ctx context.Context, blockerID, targetID uuid.UUID) error {
	if blockerID == targetID {
		return ErrCannotBlockSelf
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrUserNotFound
	}

	rel := &domain.BlockRelation{
		UserID:        blockerID,
		BlockedUserID: targetID,
		CreatedAt:     time.Now(),
	}
	if err := s.blockRepo.Create(ctx, rel); err != nil {
		return fmt.Errorf("creating block relation: %w", err)
	}
	return nil
}

// Unblock removes the directed relation; removing a relation that
// doesn't exist is a no-op.
func (s *BlockService) Unblock(ctx context.Context, blockerID, targetID uuid.UUID) error {
	return s.blockRepo.Delete(ctx, blockerID, targetID)
}

// IsBlocked checks a single direction: does userID block otherID.
func (s *BlockService) IsBlocked(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	return s.blockRepo.Exists(ctx, userID, otherID)
}

// ListBlocked returns the users the caller has blocked, most recent
// first.
func (s *BlockService) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]domain.UserSummary, error) {
	rels, err := s.blockRepo.List(ctx, blockerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.UserSummary, 0, len(rels))
	for _, rel := range rels {
		user, err := s.userRepo.GetByID(ctx, rel.BlockedUserID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			summaries = append(summaries, user.Summary())
		}
	}
	return summaries, nil
}
