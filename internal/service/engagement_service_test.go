package service

import (
	"context"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newEngagementService(t *testing.T) (*EngagementService, *recordingPublisher, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	events := &recordingPublisher{}
	svc := NewEngagementService(
		repository.NewReactionRepository(db),
		repository.NewPostRepository(db, repository.DefaultTrending),
		repository.NewCommentRepository(db),
		events,
	)
	return svc, events, db
}

func TestEngagementService_ReactToggles(t *testing.T) {
	svc, events, db := newEngagementService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	fan := testutil.CreateUser(t, db, "fan")
	post := testutil.CreatePost(t, db, owner.ID, "p")
	target := models.Target{Type: models.TargetPost, ID: post.ID}

	steps := []struct {
		kind      models.ReactionKind
		outcome   models.ReactionOutcome
		wantKind  models.ReactionKind
		wantLiked bool
		wantCount int64
	}{
		{"", models.ReactionAdded, models.ReactionLike, true, 1},
		{models.ReactionDislike, models.ReactionChanged, models.ReactionDislike, false, 0},
		{models.ReactionDislike, models.ReactionRemoved, "", false, 0},
	}

	for i, step := range steps {
		result, err := svc.React(ctx, ReactInput{UserID: fan.ID, Target: target, Kind: step.kind})
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.outcome, result.Outcome, "step %d", i)
		assert.Equal(t, step.wantKind, result.Kind, "step %d", i)
		assert.Equal(t, step.wantLiked, result.Liked, "step %d", i)
		assert.Equal(t, step.wantCount, result.Count, "step %d", i)
	}

	got := events.all()
	require.Len(t, got, len(steps))
	for _, ev := range got {
		assert.Equal(t, owner.ID, ev.recipient)
		assert.Equal(t, EventPostReactionUpdated, ev.event.Type)
	}
}

func TestEngagementService_ReactRejects(t *testing.T) {
	svc, _, db := newEngagementService(t)
	user := testutil.CreateUser(t, db, "user")
	post := testutil.CreatePost(t, db, user.ID, "p")

	tests := []struct {
		name string
		in   ReactInput
		code string
	}{
		{"bad kind", ReactInput{Target: models.Target{Type: models.TargetPost, ID: post.ID}, Kind: "love"}, models.CodeValidation},
		{"bad target type", ReactInput{Target: models.Target{Type: "story", ID: 1}}, models.CodeValidation},
		{"zero id", ReactInput{Target: models.Target{Type: models.TargetPost}}, models.CodeValidation},
		{"missing post", ReactInput{Target: models.Target{Type: models.TargetPost, ID: 999}}, models.CodeNotFound},
		{"missing comment", ReactInput{Target: models.Target{Type: models.TargetComment, ID: 999}}, models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.UserID = user.ID
			_, err := svc.React(context.Background(), tt.in)
			assertCode(t, err, tt.code)
		})
	}
}

func TestEngagementService_CommentReactionsDoNotNotify(t *testing.T) {
	svc, events, db := newEngagementService(t)
	user := testutil.CreateUser(t, db, "user")
	post := testutil.CreatePost(t, db, user.ID, "p")
	comment := testutil.CreateComment(t, db, user.ID, post.ID, nil, "c")

	result, err := svc.React(context.Background(), ReactInput{
		UserID: user.ID,
		Target: models.Target{Type: models.TargetComment, ID: comment.ID},
		Kind:   models.ReactionLike,
	})
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.EqualValues(t, 1, result.Count)
	assert.Empty(t, events.all())
}

func TestEngagementService_Unreact(t *testing.T) {
	svc, _, db := newEngagementService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "user")
	post := testutil.CreatePost(t, db, user.ID, "p")
	target := models.Target{Type: models.TargetPost, ID: post.ID}

	require.NoError(t, svc.Unreact(ctx, user.ID, target), "nothing to remove is fine")

	_, err := svc.React(ctx, ReactInput{UserID: user.ID, Target: target})
	require.NoError(t, err)
	require.NoError(t, svc.Unreact(ctx, user.ID, target))

	var rows int64
	require.NoError(t, db.Model(&models.Reaction{}).Count(&rows).Error)
	assert.Zero(t, rows)

	err = svc.Unreact(ctx, user.ID, models.Target{Type: "story", ID: 1})
	assertValidationError(t, err)
}
