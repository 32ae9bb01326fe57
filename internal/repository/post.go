// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/cache"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"gorm.io/gorm"
)

// Feed orderings.
const (
	SortLatest   = "latest"
	SortTrending = "trending"
)

// TrendingConfig weights recent activity for the trending ordering.
type TrendingConfig struct {
	Window        time.Duration
	LikeWeight    float64
	CommentWeight float64
}

// DefaultTrending is a 7 day window where a comment counts double a like.
var DefaultTrending = TrendingConfig{Window: 7 * 24 * time.Hour, LikeWeight: 1, CommentWeight: 2}

// PostQuery narrows a post listing. Zero fields do not filter.
type PostQuery struct {
	Sort     string
	ViewerID uint
	// AuthorID limits to one user's posts.
	AuthorID uint
	// FollowerID limits to posts by users that FollowerID follows.
	FollowerID uint
	Hashtag    string
	// Search matches description or hashtag title, case-insensitively.
	Search string
	Limit  int
	Offset int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, q PostQuery) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	ReplaceHashtags(ctx context.Context, post *models.Post, tags []models.Hashtag) error
	SoftDelete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db       *gorm.DB
	trending TrendingConfig
	now      func() time.Time
	logger   *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB, trending TrendingConfig) PostRepository {
	if trending.Window <= 0 {
		trending.Window = DefaultTrending.Window
	}
	return &postRepository{
		db:       db,
		trending: trending,
		now:      time.Now,
		logger:   observability.NewRepoLogger("posts"),
	}
}

// Create inserts the post with its media and links existing hashtags.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()

	err := r.db.WithContext(ctx).Omit("User", "Hashtags.*").Create(post).Error
	if err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	cache.InvalidateHashtags(ctx)
	r.logger.LogCreate(ctx, map[string]interface{}{"post_id": post.ID, "user_id": post.UserID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	load := func() error {
		err := r.withAssociations(r.applyPostDetails(readDB(r.db).WithContext(ctx), viewerID, false)).
			Where("posts.is_deleted = ?", false).
			First(&post, id).Error
		if err != nil {
			return mapFindError(err, "Post", id)
		}
		return nil
	}

	// Anonymous detail carries no viewer state and is shared through the cache.
	var err error
	if viewerID == 0 {
		err = cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) List(ctx context.Context, q PostQuery) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "posts")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "list", "posts")
	defer span.End()

	limit, offset := page(q.Limit, q.Offset)
	trending := q.Sort == SortTrending

	db := r.withAssociations(r.applyPostDetails(readDB(r.db).WithContext(ctx), q.ViewerID, trending)).
		Where("posts.is_deleted = ?", false)

	if q.AuthorID != 0 {
		db = db.Where("posts.user_id = ?", q.AuthorID)
	}
	if q.FollowerID != 0 {
		db = db.Where("posts.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)", q.FollowerID)
	}
	if tag := strings.TrimSpace(q.Hashtag); tag != "" {
		db = db.Where("posts.id IN (SELECT post_hashtags.post_id FROM post_hashtags "+
			"JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id WHERE hashtags.title = ?)", tag)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		like := containsPattern(search)
		db = db.Where("LOWER(posts.description) LIKE ? OR posts.id IN (SELECT post_hashtags.post_id FROM post_hashtags "+
			"JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id WHERE LOWER(hashtags.title) LIKE ?)", like, like)
	}

	var posts []*models.Post
	if err := applySort(db, q.Sort).Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// applySort appends the ORDER BY clause. Every ordering ends on created_at
// and id so pagination stays deterministic.
func applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case SortTrending:
		return db.Order("trending_score DESC").Order("posts.created_at DESC").Order("posts.id DESC")
	default: // "latest" and anything unrecognized
		return db.Order("posts.created_at DESC").Order("posts.id DESC")
	}
}

func (r *postRepository) withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("media.id") }).
		Preload("Hashtags")
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
// With trending set it also computes trending_score over the configured window;
// the cutoff is bound from Go so the statement is portable.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint, trending bool) *gorm.DB {
	var sb strings.Builder
	args := make([]interface{}, 0, 12)

	sb.WriteString("posts.*, ")
	sb.WriteString("(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count, ")
	sb.WriteString("(SELECT COUNT(*) FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = posts.id AND reactions.kind = ?) AS likes_count, ")
	args = append(args, models.TargetPost, models.ReactionLike)
	sb.WriteString("(SELECT COUNT(*) FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = posts.id AND reactions.kind = ?) AS dislikes_count")
	args = append(args, models.TargetPost, models.ReactionDislike)

	if viewerID != 0 {
		sb.WriteString(", EXISTS(SELECT 1 FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = posts.id AND reactions.kind = ? AND reactions.user_id = ?) AS viewer_has_liked")
		args = append(args, models.TargetPost, models.ReactionLike, viewerID)
	} else {
		sb.WriteString(", 1 = 0 AS viewer_has_liked")
	}

	if trending {
		since := r.now().Add(-r.trending.Window)
		sb.WriteString(", (CAST(? AS DOUBLE PRECISION) * (SELECT COUNT(*) FROM reactions WHERE reactions.target_type = ? AND reactions.target_id = posts.id AND reactions.kind = ? AND reactions.created_at >= ?)")
		sb.WriteString(" + CAST(? AS DOUBLE PRECISION) * (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.created_at >= ?)) AS trending_score")
		args = append(args, r.trending.LikeWeight, models.TargetPost, models.ReactionLike, since, r.trending.CommentWeight, since)
	}

	return db.Select(sb.String(), args...)
}

// Update saves the editable post fields.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("Description", "Location", "UpdatedAt").
		Updates(post).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	r.logger.LogUpdate(ctx, map[string]interface{}{"post_id": post.ID})
	return nil
}

// ReplaceHashtags swaps the post's hashtag links for tags.
func (r *postRepository) ReplaceHashtags(ctx context.Context, post *models.Post, tags []models.Hashtag) error {
	if err := r.db.WithContext(ctx).Model(post).Association("Hashtags").Replace(tags); err != nil {
		return models.NewInternalError(err)
	}
	post.Hashtags = tags
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidateHashtags(ctx)
	return nil
}

// SoftDelete hides the post from every read.
func (r *postRepository) SoftDelete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	cache.InvalidateHashtags(ctx)
	r.logger.LogDelete(ctx, map[string]interface{}{"post_id": id, "soft": true})
	return nil
}
