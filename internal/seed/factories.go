// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the plain-text password of every generated user.
const DefaultPassword = "password123"

var topicTags = []string{
	"travel", "food", "photography", "nature", "fitness", "music", "art",
	"coffee", "sunset", "books", "golang", "weekend", "friends", "city",
	"mountains", "beach", "streetfood", "design", "pets", "gaming",
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder, seed plans and tests.
type Factory struct {
	db        *gorm.DB
	opts      Options
	faker     *gofakeit.Faker
	posts     repository.PostRepository
	comments  repository.CommentRepository
	hashtags  repository.HashtagRepository
	reactions repository.ReactionRepository
	follows   repository.FollowRepository

	passwordHash string
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
// db may be nil when opts.DryRun is set.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	opts = opts.withDefaults()
	randSeed := opts.RandomSeed
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	return &Factory{
		db:        db,
		opts:      opts,
		faker:     gofakeit.New(randSeed),
		posts:     repository.NewPostRepository(db, repository.DefaultTrending),
		comments:  repository.NewCommentRepository(db),
		hashtags:  repository.NewHashtagRepository(db),
		reactions: repository.NewReactionRepository(db),
		follows:   repository.NewFollowRepository(db),
		nextID:    1000,
	}
}

func (f *Factory) syntheticID() uint {
	f.nextID++
	return f.nextID
}

// hashPassword hashes plain once per distinct value. Fast mode uses the
// minimum bcrypt cost so generated accounts can still log in.
func (f *Factory) hashPassword(plain string) (string, error) {
	if plain == DefaultPassword && f.passwordHash != "" {
		return f.passwordHash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if plain == DefaultPassword {
		f.passwordHash = string(hashed)
	}
	return string(hashed), nil
}

// createdAt spreads timestamps over the configured window.
func (f *Factory) createdAt() time.Time {
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return time.Now().Add(-back)
}

// BuildUser constructs a sample user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, f.faker.Number(100, 9999)))
	username = strings.NewReplacer(" ", "", "'", "").Replace(username)

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: first,
		LastName:  last,
		Bio:       f.faker.Sentence(10),
		Avatar:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
		Location:  f.faker.City(),
		IsActive:  true,
		CreatedAt: f.createdAt(),
	}
	if f.faker.Bool() {
		user.Website = f.faker.URL()
	}

	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample `models.User` whose password
// is DefaultPassword unless an override sets one.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)

	plain := user.Password
	if plain == "" {
		plain = DefaultPassword
	}
	hashed, err := f.hashPassword(plain)
	if err != nil {
		return nil, err
	}
	user.Password = hashed

	if f.opts.DryRun {
		user.ID = f.syntheticID()
		log.Printf("[dry-run] CreateUser: id=%d username=%s", user.ID, user.Username)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post with media and hashtag titles populated but
// does not persist it. Hashtags hold only titles until CreatePost resolves them.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	tags := make([]string, 0, 3)
	for i := f.faker.Number(0, 3); i > 0; i-- {
		tags = append(tags, topicTags[f.faker.Number(0, len(topicTags)-1)])
	}

	description := f.faker.Sentence(f.faker.Number(6, 20))
	for _, tag := range tags {
		description += " #" + tag
	}

	post := &models.Post{
		UserID:      user.ID,
		Description: description,
		CreatedAt:   f.createdAt(),
	}
	if f.faker.Number(0, 3) == 0 {
		post.Location = f.faker.City()
	}
	for _, tag := range tags {
		post.Hashtags = append(post.Hashtags, models.Hashtag{Title: tag})
	}

	for i := f.faker.Number(1, f.opts.MaxMediaPerPost); i > 0; i-- {
		kind := models.MediaTypeImage
		ext := "webp"
		if f.faker.Number(0, 9) == 0 {
			kind, ext = models.MediaTypeVideo, "mp4"
		}
		post.Media = append(post.Media, models.Media{
			File:    fmt.Sprintf("/media/seed/%s.%s", f.faker.UUID(), ext),
			Caption: f.faker.Sentence(4),
			Type:    kind,
		})
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample `models.Post` for the given
// user, creating any hashtags it references.
func (f *Factory) CreatePost(user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)

	raw := make([]string, 0, len(post.Hashtags))
	for _, tag := range post.Hashtags {
		raw = append(raw, tag.Title)
	}
	titles, err := validation.NormalizeHashtags(raw)
	if err != nil {
		return nil, err
	}

	if f.opts.DryRun {
		post.ID = f.syntheticID()
		post.Hashtags = post.Hashtags[:0]
		for _, t := range titles {
			post.Hashtags = append(post.Hashtags, models.Hashtag{Title: t})
		}
		log.Printf("[dry-run] CreatePost: id=%d user=%d media=%d tags=%v", post.ID, post.UserID, len(post.Media), titles)
		return post, nil
	}

	tags, err := f.hashtags.GetOrCreate(context.Background(), titles)
	if err != nil {
		return nil, err
	}
	post.Hashtags = tags

	if err := f.posts.Create(context.Background(), post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post, or a reply when parent is set.
func (f *Factory) CreateComment(user *models.User, post *models.Post, parent *models.Comment, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content:   f.faker.Sentence(f.faker.Number(3, 15)),
		UserID:    user.ID,
		PostID:    post.ID,
		CreatedAt: post.CreatedAt.Add(time.Duration(f.faker.Number(1, 72*60)) * time.Minute),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
		comment.CreatedAt = parent.CreatedAt.Add(time.Duration(f.faker.Number(1, 24*60)) * time.Minute)
	}
	if comment.CreatedAt.After(time.Now()) {
		comment.CreatedAt = time.Now()
	}

	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		comment.ID = f.syntheticID()
		return comment, nil
	}

	if err := f.comments.Create(context.Background(), comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// React records a reaction from user on target. Likes outnumber dislikes
// roughly four to one when kind is empty.
func (f *Factory) React(user *models.User, target models.Target, kind models.ReactionKind) (models.ReactionOutcome, error) {
	if kind == "" {
		kind = models.ReactionLike
		if f.faker.Number(0, 4) == 0 {
			kind = models.ReactionDislike
		}
	}
	if f.opts.DryRun {
		return models.ReactionAdded, nil
	}
	return f.reactions.Apply(context.Background(), user.ID, target, kind)
}

// Follow makes follower follow following. Self follows are skipped and
// reported as not created.
func (f *Factory) Follow(follower, following *models.User) (bool, error) {
	if follower.ID == following.ID {
		return false, nil
	}
	if f.opts.DryRun {
		return true, nil
	}
	_, created, err := f.follows.Create(context.Background(), follower.ID, following.ID)
	return created, err
}
