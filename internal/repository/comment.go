// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	Exists(ctx context.Context, id uint) (bool, error)
	// ListByPost returns top-level comments, newest first, each with its
	// direct replies attached oldest first.
	ListByPost(ctx context.Context, postID, viewerID uint, limit, offset int) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, logger: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()

	if err := r.db.WithContext(ctx).Omit("User", "Post", "Parent").Create(comment).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"comment_id": comment.ID, "post_id": comment.PostID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, mapFindError(err, "Comment", id)
	}
	return &comment, nil
}

// Exists reports whether the comment exists on a visible post.
func (r *commentRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Comment{}).
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("comments.id = ? AND posts.is_deleted = ?", id, false).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID, viewerID uint, limit, offset int) ([]*models.Comment, error) {
	defer observability.TrackQuery("list", "comments")()

	limit, offset = page(limit, offset)
	db := readDB(r.db).WithContext(ctx)

	var comments []*models.Comment
	err := applyCommentDetails(db, viewerID).
		Preload("User").
		Where("comments.post_id = ? AND comments.parent_id IS NULL", postID).
		Order("comments.created_at DESC").
		Order("comments.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(comments) == 0 {
		return comments, nil
	}

	parentIDs := make([]uint, 0, len(comments))
	byID := make(map[uint]*models.Comment, len(comments))
	for _, c := range comments {
		parentIDs = append(parentIDs, c.ID)
		byID[c.ID] = c
	}

	var replies []models.Comment
	err = applyCommentDetails(db, viewerID).
		Preload("User").
		Where("comments.parent_id IN ?", parentIDs).
		Order("comments.created_at ASC").
		Order("comments.id ASC").
		Find(&replies).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, reply := range replies {
		if parent := byID[*reply.ParentID]; parent != nil {
			parent.Replies = append(parent.Replies, reply)
		}
	}
	return comments, nil
}

// applyCommentDetails adds like and reply counts plus the viewer's like state.
func applyCommentDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "comments.*, " +
		"(SELECT COUNT(*) FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = comments.id AND reactions.kind = ?) AS likes_count, " +
		"(SELECT COUNT(*) FROM comments AS replies WHERE replies.parent_id = comments.id) AS replies_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = comments.id AND reactions.kind = ? AND reactions.user_id = ?) AS viewer_has_liked",
			models.TargetComment, models.ReactionLike, models.TargetComment, models.ReactionLike, viewerID)
	}
	return db.Select(selectQuery+", 1 = 0 AS viewer_has_liked", models.TargetComment, models.ReactionLike)
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Model(comment).Select("Content", "UpdatedAt").Updates(comment).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{"comment_id": comment.ID})
	return nil
}

// Delete removes the comment, its replies and every reaction on them.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Comment{}).Where("id = ? OR parent_id = ?", id, id).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return models.NewNotFoundError("Comment", id)
		}
		if err := tx.Where("target_type = ? AND target_id IN ?", models.TargetComment, ids).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return err
		}
		return models.NewInternalError(err)
	}
	r.logger.LogDelete(ctx, map[string]interface{}{"comment_id": id})
	return nil
}
