package repository

import (
	"context"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/cache"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores directed follow edges.
type FollowRepository interface {
	// Create get-or-creates the edge; created is false when it already existed.
	Create(ctx context.Context, followerID, followingID uint) (follow *models.Follow, created bool, err error)
	Delete(ctx context.Context, followerID, followingID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
}

type followRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewFollowRepository returns a GORM-backed FollowRepository.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db, logger: observability.NewRepoLogger("follows")}
}

func (r *followRepository) Create(ctx context.Context, followerID, followingID uint) (*models.Follow, bool, error) {
	defer observability.TrackQuery("upsert", "follows")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "create", "follows")
	defer span.End()

	db := r.db.WithContext(ctx)
	row := models.Follow{FollowerID: followerID, FollowingID: followingID}
	res := db.Omit("Follower", "Following").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		observability.RecordErrorInContext(ctx, res.Error)
		r.logger.LogError(ctx, res.Error, "create")
		return nil, false, models.NewInternalError(res.Error)
	}
	created := res.RowsAffected == 1

	var follow models.Follow
	if err := db.Where("follower_id = ? AND following_id = ?", followerID, followingID).First(&follow).Error; err != nil {
		return nil, false, models.NewInternalError(err)
	}
	if created {
		cache.InvalidateUser(ctx, followerID)
		cache.InvalidateUser(ctx, followingID)
		r.logger.LogCreate(ctx, map[string]interface{}{"follower_id": followerID, "following_id": followingID})
	}
	return &follow, created, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		cache.InvalidateUser(ctx, followerID)
		cache.InvalidateUser(ctx, followingID)
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.listUsers(ctx, "follows.follower_id", "follows.following_id", userID, limit, offset)
}

func (r *followRepository) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.listUsers(ctx, "follows.following_id", "follows.follower_id", userID, limit, offset)
}

// listUsers joins users on joinCol for edges whose filterCol equals userID.
// Newest edges come first.
func (r *followRepository) listUsers(ctx context.Context, joinCol, filterCol string, userID uint, limit, offset int) ([]models.User, error) {
	limit, offset = page(limit, offset)

	var users []models.User
	err := readDB(r.db).WithContext(ctx).
		Joins("JOIN follows ON users.id = "+joinCol).
		Where(filterCol+" = ? AND users.is_deleted = ?", userID, false).
		Order("follows.created_at DESC").
		Order("follows.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
