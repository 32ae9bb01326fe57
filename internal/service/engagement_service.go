package service

import (
	"context"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/cache"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
)

// TargetResolver reports whether a reactable entity exists and is visible.
type TargetResolver func(ctx context.Context, id uint) (bool, error)

type ReactInput struct {
	UserID uint
	Target models.Target
	Kind   models.ReactionKind
}

// ReactResult is the state after a React call. Kind is empty when the
// reaction was removed; Count is the target's like count.
type ReactResult struct {
	Outcome models.ReactionOutcome `json:"outcome"`
	Liked   bool                   `json:"liked"`
	Kind    models.ReactionKind    `json:"kind"`
	Count   int64                  `json:"count"`
}

// EngagementService applies likes and dislikes to any registered target type.
type EngagementService struct {
	reactions repository.ReactionRepository
	posts     repository.PostRepository
	targets   map[models.TargetType]TargetResolver
	events    ActivityPublisher
}

func NewEngagementService(
	reactions repository.ReactionRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	events ActivityPublisher,
) *EngagementService {
	if events == nil {
		events = NopPublisher{}
	}
	return &EngagementService{
		reactions: reactions,
		posts:     posts,
		targets: map[models.TargetType]TargetResolver{
			models.TargetPost:    posts.Exists,
			models.TargetComment: comments.Exists,
		},
		events: events,
	}
}

func (s *EngagementService) resolve(ctx context.Context, target models.Target) error {
	exists, ok := s.targets[target.Type]
	if !ok {
		return models.NewValidationError("Unsupported target type")
	}
	if target.ID == 0 {
		return models.NewValidationError("Invalid target ID")
	}
	ctx, span := observability.GetTraceLayer().TraceServiceToRepository(ctx, string(target.Type)+"Repository", "Exists")
	defer span.End()

	found, err := exists(ctx, target.ID)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return err
	}
	if !found {
		return models.NewNotFoundError(titleFor(target.Type), target.ID)
	}
	return nil
}

func titleFor(t models.TargetType) string {
	switch t {
	case models.TargetPost:
		return "Post"
	case models.TargetComment:
		return "Comment"
	default:
		return string(t)
	}
}

// React records kind on the target. Repeating the current kind removes the
// reaction, a different kind replaces it.
func (s *EngagementService) React(ctx context.Context, in ReactInput) (*ReactResult, error) {
	if in.Kind == "" {
		in.Kind = models.ReactionLike
	}
	if !in.Kind.Valid() {
		return nil, models.NewValidationError("kind must be like or dislike")
	}
	if err := s.resolve(ctx, in.Target); err != nil {
		return nil, err
	}

	outcome, err := s.reactions.Apply(ctx, in.UserID, in.Target, in.Kind)
	if err != nil {
		return nil, err
	}
	observability.ReactionsTotal.WithLabelValues(string(in.Target.Type), string(outcome)).Inc()

	count, err := s.reactions.CountLikes(ctx, in.Target)
	if err != nil {
		return nil, err
	}

	result := &ReactResult{Outcome: outcome, Count: count}
	if outcome != models.ReactionRemoved {
		result.Kind = in.Kind
		result.Liked = in.Kind == models.ReactionLike
	}

	if in.Target.Type == models.TargetPost {
		cache.InvalidatePost(ctx, in.Target.ID)
		s.notifyPostOwner(ctx, in, result)
	}
	return result, nil
}

func (s *EngagementService) notifyPostOwner(ctx context.Context, in ReactInput, result *ReactResult) {
	post, err := s.posts.GetByID(ctx, in.Target.ID, 0)
	if err != nil {
		return
	}
	s.events.Publish(ctx, post.UserID, ActivityEvent{
		Type:    EventPostReactionUpdated,
		ActorID: in.UserID,
		Payload: map[string]interface{}{
			"post_id": in.Target.ID,
			"outcome": result.Outcome,
			"kind":    result.Kind,
			"count":   result.Count,
		},
	})
}

// Unreact removes any reaction the user holds on the target. Removing a
// reaction that does not exist succeeds.
func (s *EngagementService) Unreact(ctx context.Context, userID uint, target models.Target) error {
	if _, ok := s.targets[target.Type]; !ok {
		return models.NewValidationError("Unsupported target type")
	}
	removed, err := s.reactions.Delete(ctx, userID, target)
	if err != nil {
		return err
	}
	if removed {
		observability.ReactionsTotal.WithLabelValues(string(target.Type), "cleared").Inc()
		if target.Type == models.TargetPost {
			cache.InvalidatePost(ctx, target.ID)
		}
	}
	return nil
}
