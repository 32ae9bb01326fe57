package repository

import (
	"context"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/cache"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HashtagRepository stores the shared hashtag vocabulary.
type HashtagRepository interface {
	// GetOrCreate returns one row per title, inserting missing ones. Titles
	// must already be normalised.
	GetOrCreate(ctx context.Context, titles []string) ([]models.Hashtag, error)
	GetByTitle(ctx context.Context, title string) (*models.Hashtag, error)
	List(ctx context.Context, query string, limit, offset int) ([]models.Hashtag, error)
}

type hashtagRepository struct {
	db *gorm.DB
}

// NewHashtagRepository returns a GORM-backed HashtagRepository.
func NewHashtagRepository(db *gorm.DB) HashtagRepository {
	return &hashtagRepository{db: db}
}

func (r *hashtagRepository) GetOrCreate(ctx context.Context, titles []string) ([]models.Hashtag, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	defer observability.TrackQuery("upsert", "hashtags")()

	rows := make([]models.Hashtag, 0, len(titles))
	for _, t := range titles {
		rows = append(rows, models.Hashtag{Title: t})
	}

	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var tags []models.Hashtag
	if err := db.Where("title IN ?", titles).Order("title").Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateHashtags(ctx)
	return tags, nil
}

func (r *hashtagRepository) GetByTitle(ctx context.Context, title string) (*models.Hashtag, error) {
	var tag models.Hashtag
	if err := readDB(r.db).WithContext(ctx).Where("title = ?", title).First(&tag).Error; err != nil {
		return nil, mapFindError(err, "Hashtag", title)
	}
	return &tag, nil
}

// List returns hashtags ordered by how many visible posts use them.
// The unfiltered first page is cached.
func (r *hashtagRepository) List(ctx context.Context, query string, limit, offset int) ([]models.Hashtag, error) {
	limit, offset = page(limit, offset)

	fetch := func(dest *[]models.Hashtag) error {
		q := readDB(r.db).WithContext(ctx).
			Select("hashtags.*, (SELECT COUNT(*) FROM post_hashtags JOIN posts ON posts.id = post_hashtags.post_id "+
				"WHERE post_hashtags.hashtag_id = hashtags.id AND posts.is_deleted = ?) AS posts_count", false)
		if query != "" {
			q = q.Where("LOWER(hashtags.title) LIKE ?", containsPattern(query))
		}
		if err := q.Order("posts_count DESC, hashtags.title").Limit(limit).Offset(offset).Find(dest).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	}

	var tags []models.Hashtag
	if query == "" && offset == 0 && limit == defaultPageSize {
		if err := cache.Aside(ctx, cache.HashtagListKey, &tags, cache.HashtagTTL, func() error {
			return fetch(&tags)
		}); err != nil {
			return nil, err
		}
		return tags, nil
	}
	if err := fetch(&tags); err != nil {
		return nil, err
	}
	return tags, nil
}
