package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/cache"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	events      ActivityPublisher
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type CreateReplyInput struct {
	UserID   uint
	ParentID uint
	// PostID is optional. When set it must match the parent's post.
	PostID  *uint
	Content string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	events ActivityPublisher,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	if events == nil {
		events = NopPublisher{}
	}
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		events:      events,
		isAdmin:     isAdmin,
	}
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return "", models.NewValidationError("Comment too long (max 10000 characters)")
	}
	return content, nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: content,
		UserID:  in.UserID,
		PostID:  post.ID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, post.ID)

	created, err := s.commentRepo.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, post.UserID, ActivityEvent{
		Type:    EventCommentCreated,
		ActorID: in.UserID,
		Payload: map[string]interface{}{"post_id": post.ID, "comment_id": created.ID},
	})
	return created, nil
}

// CreateReply answers a top-level comment. The reply belongs to the parent's
// post; a conflicting PostID is rejected.
func (s *CommentService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	parent, err := s.commentRepo.GetByID(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}
	if in.PostID != nil && *in.PostID != parent.PostID {
		return nil, models.NewMismatchedParentError(parent.PostID, *in.PostID)
	}
	if parent.IsReply() {
		return nil, models.NewValidationError("Replies can only be made to top-level comments")
	}
	exists, err := s.postRepo.Exists(ctx, parent.PostID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", parent.PostID)
	}

	parentID := parent.ID
	reply := &models.Comment{
		Content:  content,
		UserID:   in.UserID,
		PostID:   parent.PostID,
		ParentID: &parentID,
	}
	if err := s.commentRepo.Create(ctx, reply); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, parent.PostID)

	created, err := s.commentRepo.GetByID(ctx, reply.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, parent.UserID, ActivityEvent{
		Type:    EventReplyCreated,
		ActorID: in.UserID,
		Payload: map[string]interface{}{"post_id": parent.PostID, "comment_id": created.ID, "parent_id": parent.ID},
	})
	return created, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint, limit, offset int) ([]*models.Comment, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return s.commentRepo.ListByPost(ctx, postID, viewerID, limit, offset)
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own comments")
	}
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment removes the comment together with its replies. Authors and
// admins may delete.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) error {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return err
	}

	if comment.UserID != in.UserID {
		if s.isAdmin == nil {
			return models.NewForbiddenError("You can only delete your own comments")
		}
		admin, err := s.isAdmin(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}

	if err := s.commentRepo.Delete(ctx, in.CommentID); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}
