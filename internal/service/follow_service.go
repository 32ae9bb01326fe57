package service

import (
	"context"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
)

// FollowService manages the directed follow graph.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	events     ActivityPublisher
}

// FollowResult reports the edge and whether this call created it.
type FollowResult struct {
	Follow  *models.Follow
	Created bool
}

// NewFollowService returns a new FollowService.
func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository, events ActivityPublisher) *FollowService {
	if events == nil {
		events = NopPublisher{}
	}
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		events:     events,
	}
}

func (s *FollowService) requireUser(ctx context.Context, userID uint) error {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewUserNotFoundError(userID)
	}
	return nil
}

// Follow makes followerID follow followingID. Following twice is a no-op.
func (s *FollowService) Follow(ctx context.Context, followerID, followingID uint) (*FollowResult, error) {
	if followerID == followingID {
		return nil, models.NewSelfFollowError()
	}
	if err := s.requireUser(ctx, followingID); err != nil {
		return nil, err
	}

	follow, created, err := s.followRepo.Create(ctx, followerID, followingID)
	if err != nil {
		return nil, err
	}
	if created {
		s.events.Publish(ctx, followingID, ActivityEvent{
			Type:    EventFollowCreated,
			ActorID: followerID,
			Payload: map[string]interface{}{"follower_id": followerID},
		})
	}
	return &FollowResult{Follow: follow, Created: created}, nil
}

// Unfollow removes the edge if it exists.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followingID uint) error {
	_, err := s.followRepo.Delete(ctx, followerID, followingID)
	return err
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, followingID)
}

func (s *FollowService) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.ListFollowers(ctx, userID, limit, offset)
}

func (s *FollowService) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.ListFollowing(ctx, userID, limit, offset)
}
