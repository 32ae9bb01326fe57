package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/featureflags"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/validation"
)

const (
	maxDescriptionLen = 5000
	maxLocationLen    = 255
)

type PostService struct {
	postRepo    repository.PostRepository
	hashtagRepo repository.HashtagRepository
	userRepo    repository.UserRepository
	media       *MediaService
	flags       *featureflags.Manager
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type CreatePostInput struct {
	UserID      uint
	Description string
	Location    string
	Hashtags    []string
	// Uploads are stored through MediaService before the post is written.
	Uploads []UploadMediaInput
	// Media are references to files that were uploaded earlier.
	Media []models.Media
}

type ListPostsInput struct {
	Sort     string
	ViewerID uint
	Limit    int
	Offset   int
}

type UpdatePostInput struct {
	UserID      uint
	PostID      uint
	Description *string
	Location    *string
	Hashtags    *[]string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	hashtagRepo repository.HashtagRepository,
	userRepo repository.UserRepository,
	media *MediaService,
	flags *featureflags.Manager,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		hashtagRepo: hashtagRepo,
		userRepo:    userRepo,
		media:       media,
		flags:       flags,
		isAdmin:     isAdmin,
	}
}

func (s *PostService) trendingEnabled(viewerID uint) bool {
	return s.flags == nil || s.flags.Enabled(featureflags.TrendingFeed, viewerID)
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return nil, models.NewValidationError("Description too long (max 5000 characters)")
	}
	if utf8.RuneCountInString(in.Location) > maxLocationLen {
		return nil, models.NewValidationError("Location too long (max 255 characters)")
	}
	if len(in.Uploads)+len(in.Media) > MaxMediaPerPost {
		return nil, models.NewValidationError("Too many media files (max 10)")
	}
	for _, m := range in.Media {
		if strings.TrimSpace(m.File) == "" {
			return nil, models.NewValidationError("Media file is required")
		}
		if m.Type != "" && !m.Type.Valid() {
			return nil, models.NewValidationError("media_type must be image or video")
		}
	}

	titles, err := validation.NormalizeHashtags(in.Hashtags)
	if err != nil {
		return nil, models.NewFieldValidationError(map[string]string{"hashtags": err.Error()})
	}

	media := make([]models.Media, 0, len(in.Uploads)+len(in.Media))
	for _, up := range in.Uploads {
		if s.media == nil {
			return nil, models.NewValidationError("Media uploads are not enabled")
		}
		up.UserID = in.UserID
		saved, err := s.media.Save(ctx, up)
		if err != nil {
			return nil, err
		}
		media = append(media, *saved)
	}
	for _, m := range in.Media {
		if m.Type == "" {
			m.Type = models.MediaTypeImage
		}
		media = append(media, models.Media{File: m.File, Type: m.Type, Caption: strings.TrimSpace(m.Caption)})
	}

	hashtags, err := s.hashtagRepo.GetOrCreate(ctx, titles)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		UserID:      in.UserID,
		Description: in.Description,
		Location:    in.Location,
		Media:       media,
		Hashtags:    hashtags,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, viewerID)
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	sort := strings.ToLower(strings.TrimSpace(in.Sort))
	switch sort {
	case "", repository.SortLatest:
		sort = repository.SortLatest
	case repository.SortTrending:
		if !s.trendingEnabled(in.ViewerID) {
			sort = repository.SortLatest
		}
	default:
		return nil, models.NewValidationError("sort must be latest or trending")
	}
	return s.postRepo.List(ctx, repository.PostQuery{
		Sort: sort, ViewerID: in.ViewerID, Limit: in.Limit, Offset: in.Offset,
	})
}

// Feed lists posts by users the viewer follows, newest first.
func (s *PostService) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	if viewerID == 0 {
		return nil, models.NewUnauthorizedError("Authentication credentials were not provided")
	}
	return s.postRepo.List(ctx, repository.PostQuery{
		Sort: repository.SortLatest, ViewerID: viewerID, FollowerID: viewerID, Limit: limit, Offset: offset,
	})
}

// Explore ranks every post by recent activity.
func (s *PostService) Explore(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return s.ListPosts(ctx, ListPostsInput{Sort: repository.SortTrending, ViewerID: viewerID, Limit: limit, Offset: offset})
}

func (s *PostService) SearchPosts(ctx context.Context, query string, viewerID uint, limit, offset int) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.postRepo.List(ctx, repository.PostQuery{
		Sort: repository.SortLatest, ViewerID: viewerID, Search: query, Limit: limit, Offset: offset,
	})
}

func (s *PostService) UserPosts(ctx context.Context, authorID, viewerID uint, limit, offset int) ([]*models.Post, error) {
	exists, err := s.userRepo.Exists(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewUserNotFoundError(authorID)
	}
	return s.postRepo.List(ctx, repository.PostQuery{
		Sort: repository.SortLatest, ViewerID: viewerID, AuthorID: authorID, Limit: limit, Offset: offset,
	})
}

func (s *PostService) HashtagPosts(ctx context.Context, title string, viewerID uint, limit, offset int) ([]*models.Post, error) {
	titles, err := validation.NormalizeHashtags([]string{title})
	if err != nil || len(titles) != 1 {
		return nil, models.NewValidationError("Invalid hashtag")
	}
	if _, err := s.hashtagRepo.GetByTitle(ctx, titles[0]); err != nil {
		return nil, err
	}
	return s.postRepo.List(ctx, repository.PostQuery{
		Sort: repository.SortLatest, ViewerID: viewerID, Hashtag: titles[0], Limit: limit, Offset: offset,
	})
}

func (s *PostService) ListHashtags(ctx context.Context, query string, limit, offset int) ([]models.Hashtag, error) {
	query = strings.TrimLeft(strings.TrimSpace(query), "#")
	return s.hashtagRepo.List(ctx, query, limit, offset)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if utf8.RuneCountInString(desc) > maxDescriptionLen {
			return nil, models.NewValidationError("Description too long (max 5000 characters)")
		}
		post.Description = desc
	}
	if in.Location != nil {
		loc := strings.TrimSpace(*in.Location)
		if utf8.RuneCountInString(loc) > maxLocationLen {
			return nil, models.NewValidationError("Location too long (max 255 characters)")
		}
		post.Location = loc
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	if in.Hashtags != nil {
		titles, err := validation.NormalizeHashtags(*in.Hashtags)
		if err != nil {
			return nil, models.NewFieldValidationError(map[string]string{"hashtags": err.Error()})
		}
		tags, err := s.hashtagRepo.GetOrCreate(ctx, titles)
		if err != nil {
			return nil, err
		}
		if err := s.postRepo.ReplaceHashtags(ctx, post, tags); err != nil {
			return nil, err
		}
	}

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// DeletePost soft-deletes a post. Owners and admins may delete.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}

	if post.UserID != in.UserID {
		if s.isAdmin == nil {
			return models.NewForbiddenError("You can only delete your own posts")
		}
		admin, err := s.isAdmin(ctx, in.UserID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}

	return s.postRepo.SoftDelete(ctx, in.PostID)
}
