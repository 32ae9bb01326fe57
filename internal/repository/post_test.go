package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func postAt(t *testing.T, db *gorm.DB, userID uint, description string, created time.Time) *models.Post {
	t.Helper()
	post := &models.Post{UserID: userID, Description: description, CreatedAt: created}
	require.NoError(t, db.Omit("User").Create(post).Error)
	return post
}

func reactAt(t *testing.T, db *gorm.DB, userID uint, target models.Target, kind models.ReactionKind, at time.Time) {
	t.Helper()
	require.NoError(t, db.Omit("User").Create(&models.Reaction{
		UserID: userID, TargetType: target.Type, TargetID: target.ID, Kind: kind, CreatedAt: at,
	}).Error)
}

func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestPostRepository_CreateWithMediaAndHashtags(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db, DefaultTrending)
	tags := NewHashtagRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")

	hashtags, err := tags.GetOrCreate(ctx, []string{"travel", "food"})
	require.NoError(t, err)
	require.Len(t, hashtags, 2)

	post := &models.Post{
		UserID:      owner.ID,
		Description: "Lunch in Lisbon",
		Media: []models.Media{
			{File: "media/a.webp", Type: models.MediaTypeImage, Caption: "first"},
			{File: "media/b.mp4", Type: models.MediaTypeVideo},
		},
		Hashtags: hashtags,
	}
	require.NoError(t, repo.Create(ctx, post))
	require.NotZero(t, post.ID)

	got, err := repo.GetByID(ctx, post.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", got.User.Username)
	require.Len(t, got.Media, 2)
	assert.Equal(t, "first", got.Media[0].Caption)
	assert.Equal(t, models.MediaTypeVideo, got.Media[1].Type)
	assert.Len(t, got.Hashtags, 2)

	var hashtagRows int64
	require.NoError(t, db.Model(&models.Hashtag{}).Count(&hashtagRows).Error)
	assert.EqualValues(t, 2, hashtagRows, "linking must not duplicate hashtags")
}

func TestPostRepository_Aggregates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db, DefaultTrending)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	liker := testutil.CreateUser(t, db, "liker")
	other := testutil.CreateUser(t, db, "other")
	hater := testutil.CreateUser(t, db, "hater")

	post := testutil.CreatePost(t, db, owner.ID, "hello")
	target := models.Target{Type: models.TargetPost, ID: post.ID}
	testutil.React(t, db, liker.ID, target, models.ReactionLike)
	testutil.React(t, db, other.ID, target, models.ReactionLike)
	testutil.React(t, db, hater.ID, target, models.ReactionDislike)

	top := testutil.CreateComment(t, db, liker.ID, post.ID, nil, "nice")
	testutil.CreateComment(t, db, owner.ID, post.ID, &top.ID, "thanks")

	// A reaction on a comment with the same id must not leak into post counts.
	testutil.React(t, db, liker.ID, models.Target{Type: models.TargetComment, ID: post.ID}, models.ReactionLike)

	tests := []struct {
		name      string
		viewer    uint
		wantLiked bool
	}{
		{"anonymous", 0, false},
		{"liker", liker.ID, true},
		{"disliker", hater.ID, false},
		{"owner", owner.ID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetByID(ctx, post.ID, tt.viewer)
			require.NoError(t, err)
			assert.EqualValues(t, 2, got.LikesCount)
			assert.EqualValues(t, 1, got.DislikesCount)
			assert.EqualValues(t, 2, got.CommentsCount)
			assert.Equal(t, tt.wantLiked, got.ViewerHasLiked)
		})
	}
}

func TestPostRepository_SoftDeleteHidesPost(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db, DefaultTrending)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	kept := testutil.CreatePost(t, db, owner.ID, "kept")
	gone := testutil.CreatePost(t, db, owner.ID, "gone")

	require.NoError(t, repo.SoftDelete(ctx, gone.ID))

	_, err := repo.GetByID(ctx, gone.ID, owner.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	exists, err := repo.Exists(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	posts, err := repo.List(ctx, PostQuery{AuthorID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{kept.ID}, postIDs(posts))

	err = repo.SoftDelete(ctx, gone.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_LatestOrderingIsStable(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db, DefaultTrending)
	owner := testutil.CreateUser(t, db, "owner")
	at := time.Now().Add(-time.Hour)

	a := postAt(t, db, owner.ID, "a", at)
	b := postAt(t, db, owner.ID, "b", at)
	c := postAt(t, db, owner.ID, "c", at.Add(time.Minute))

	posts, err := repo.List(context.Background(), PostQuery{Sort: SortLatest})
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID, b.ID, a.ID}, postIDs(posts))

	page2, err := repo.List(context.Background(), PostQuery{Sort: SortLatest, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, postIDs(page2))
}

func TestPostRepository_TrendingOrdering(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db, TrendingConfig{Window: 7 * 24 * time.Hour, LikeWeight: 1, CommentWeight: 2})
	ctx := context.Background()
	now := time.Now()

	owner := testutil.CreateUser(t, db, "owner")
	fans := []*models.User{
		testutil.CreateUser(t, db, "fan1"),
		testutil.CreateUser(t, db, "fan2"),
		testutil.CreateUser(t, db, "fan3"),
	}

	liked := postAt(t, db, owner.ID, "three likes", now.Add(-48*time.Hour))
	discussed := postAt(t, db, owner.ID, "one comment", now.Add(-24*time.Hour))
	quiet := postAt(t, db, owner.ID, "quiet", now.Add(-time.Hour))
	stale := postAt(t, db, owner.ID, "old likes", now.Add(-30*24*time.Hour))

	for _, fan := range fans {
		reactAt(t, db, fan.ID, models.Target{Type: models.TargetPost, ID: liked.ID}, models.ReactionLike, now.Add(-time.Hour))
		reactAt(t, db, fan.ID, models.Target{Type: models.TargetPost, ID: stale.ID}, models.ReactionLike, now.Add(-20*24*time.Hour))
	}
	testutil.CreateComment(t, db, fans[0].ID, discussed.ID, nil, "hm")

	posts, err := repo.List(ctx, PostQuery{Sort: SortTrending})
	require.NoError(t, err)
	assert.Equal(t, []uint{liked.ID, discussed.ID, quiet.ID, stale.ID}, postIDs(posts))
	assert.InDelta(t, 3.0, posts[0].TrendingScore, 0.001)
	assert.InDelta(t, 2.0, posts[1].TrendingScore, 0.001)
	assert.InDelta(t, 0.0, posts[3].TrendingScore, 0.001, "activity outside the window does not count")
}

func TestPostRepository_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db, DefaultTrending)
	tags := NewHashtagRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	reader := testutil.CreateUser(t, db, "reader")
	friend := testutil.CreateUser(t, db, "friend")
	stranger := testutil.CreateUser(t, db, "stranger")

	_, _, err := follows.Create(ctx, reader.ID, friend.ID)
	require.NoError(t, err)

	travel, err := tags.GetOrCreate(ctx, []string{"travel"})
	require.NoError(t, err)

	fromFriend := testutil.CreatePost(t, db, friend.ID, "Travel diary")
	require.NoError(t, repo.ReplaceHashtags(ctx, fromFriend, travel))
	fromStranger := testutil.CreatePost(t, db, stranger.ID, "cooking")
	require.NoError(t, repo.ReplaceHashtags(ctx, fromStranger, travel))
	plain := testutil.CreatePost(t, db, stranger.ID, "nothing here")

	t.Run("feed shows followed users only", func(t *testing.T) {
		posts, err := repo.List(ctx, PostQuery{FollowerID: reader.ID})
		require.NoError(t, err)
		assert.Equal(t, []uint{fromFriend.ID}, postIDs(posts))
	})

	t.Run("hashtag", func(t *testing.T) {
		posts, err := repo.List(ctx, PostQuery{Hashtag: "travel"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{fromFriend.ID, fromStranger.ID}, postIDs(posts))
	})

	t.Run("search matches description or hashtag once", func(t *testing.T) {
		posts, err := repo.List(ctx, PostQuery{Search: "TRAVEL"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{fromFriend.ID, fromStranger.ID}, postIDs(posts))
	})

	t.Run("author", func(t *testing.T) {
		posts, err := repo.List(ctx, PostQuery{AuthorID: stranger.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{fromStranger.ID, plain.ID}, postIDs(posts))
	})
}

func TestPostRepository_Update(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPostRepository(db, DefaultTrending)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	post := testutil.CreatePost(t, db, owner.ID, "draft")

	post.Description = "final"
	post.Location = "Tehran"
	require.NoError(t, repo.Update(ctx, post))

	got, err := repo.GetByID(ctx, post.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Description)
	assert.Equal(t, "Tehran", got.Location)
}
