package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/repository"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type publishedEvent struct {
	recipient uint
	event     ActivityEvent
}

// recordingPublisher captures activity events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, recipientID uint, ev ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{recipient: recipientID, event: ev})
}

func (p *recordingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

func newCommentService(t *testing.T) (*CommentService, *recordingPublisher, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	events := &recordingPublisher{}
	svc := NewCommentService(
		repository.NewCommentRepository(db),
		repository.NewPostRepository(db, repository.DefaultTrending),
		events,
		adminCheck(db),
	)
	return svc, events, db
}

func TestCommentService_CreateComment_Validation(t *testing.T) {
	svc, _, db := newCommentService(t)
	user := testutil.CreateUser(t, db, "user")
	post := testutil.CreatePost(t, db, user.ID, "p")

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "   \n"},
		{"too long", strings.Repeat("x", models.MaxCommentLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateComment(context.Background(), CreateCommentInput{UserID: user.ID, PostID: post.ID, Content: tt.content})
			assertValidationError(t, err)
		})
	}

	_, err := svc.CreateComment(context.Background(), CreateCommentInput{UserID: user.ID, PostID: 999, Content: "hi"})
	assertCode(t, err, models.CodeNotFound)
}

func TestCommentService_CreateComment_NotifiesPostOwner(t *testing.T) {
	svc, events, db := newCommentService(t)
	owner := testutil.CreateUser(t, db, "owner")
	visitor := testutil.CreateUser(t, db, "visitor")
	post := testutil.CreatePost(t, db, owner.ID, "p")

	comment, err := svc.CreateComment(context.Background(), CreateCommentInput{UserID: visitor.ID, PostID: post.ID, Content: "  nice  "})
	require.NoError(t, err)
	assert.Equal(t, "nice", comment.Content)
	assert.Equal(t, "visitor", comment.User.Username)

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, owner.ID, got[0].recipient)
	assert.Equal(t, EventCommentCreated, got[0].event.Type)
	assert.Equal(t, visitor.ID, got[0].event.ActorID)
}

func TestCommentService_CreateReply(t *testing.T) {
	svc, events, db := newCommentService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	visitor := testutil.CreateUser(t, db, "visitor")
	post := testutil.CreatePost(t, db, owner.ID, "p")
	other := testutil.CreatePost(t, db, owner.ID, "other")
	top := testutil.CreateComment(t, db, visitor.ID, post.ID, nil, "top")

	t.Run("mismatched post", func(t *testing.T) {
		_, err := svc.CreateReply(ctx, CreateReplyInput{UserID: owner.ID, ParentID: top.ID, PostID: &other.ID, Content: "x"})
		assertCode(t, err, models.CodeMismatchedParent)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.CreateReply(ctx, CreateReplyInput{UserID: owner.ID, ParentID: 999, Content: "x"})
		assertCode(t, err, models.CodeNotFound)
	})

	reply, err := svc.CreateReply(ctx, CreateReplyInput{UserID: owner.ID, ParentID: top.ID, PostID: &post.ID, Content: "thanks"})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)
	assert.Equal(t, post.ID, reply.PostID)

	t.Run("no nested replies", func(t *testing.T) {
		_, err := svc.CreateReply(ctx, CreateReplyInput{UserID: visitor.ID, ParentID: reply.ID, Content: "deeper"})
		assertValidationError(t, err)
	})

	got := events.all()
	require.Len(t, got, 1)
	assert.Equal(t, visitor.ID, got[0].recipient)
	assert.Equal(t, EventReplyCreated, got[0].event.Type)

	comments, err := svc.ListComments(ctx, post.ID, 0, 20, 0)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Len(t, comments[0].Replies, 1)

	_, err = svc.ListComments(ctx, 999, 0, 20, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestCommentService_UpdateComment_Ownership(t *testing.T) {
	svc, _, db := newCommentService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	other := testutil.CreateUser(t, db, "other")
	post := testutil.CreatePost(t, db, author.ID, "p")
	comment := testutil.CreateComment(t, db, author.ID, post.ID, nil, "before")

	_, err := svc.UpdateComment(ctx, UpdateCommentInput{UserID: other.ID, CommentID: comment.ID, Content: "hijack"})
	assertCode(t, err, models.CodeForbidden)

	_, err = svc.UpdateComment(ctx, UpdateCommentInput{UserID: author.ID, CommentID: comment.ID, Content: " "})
	assertValidationError(t, err)

	updated, err := svc.UpdateComment(ctx, UpdateCommentInput{UserID: author.ID, CommentID: comment.ID, Content: "after"})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)
}

func TestCommentService_DeleteComment_Ownership(t *testing.T) {
	svc, _, db := newCommentService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	other := testutil.CreateUser(t, db, "other")
	admin := testutil.CreateUser(t, db, "admin")
	require.NoError(t, repository.NewUserRepository(db).SetAdmin(ctx, admin.ID, true))

	post := testutil.CreatePost(t, db, author.ID, "p")
	first := testutil.CreateComment(t, db, author.ID, post.ID, nil, "first")
	second := testutil.CreateComment(t, db, author.ID, post.ID, nil, "second")

	err := svc.DeleteComment(ctx, DeleteCommentInput{UserID: other.ID, CommentID: first.ID})
	assertCode(t, err, models.CodeForbidden)

	require.NoError(t, svc.DeleteComment(ctx, DeleteCommentInput{UserID: author.ID, CommentID: first.ID}))
	require.NoError(t, svc.DeleteComment(ctx, DeleteCommentInput{UserID: admin.ID, CommentID: second.ID}))

	var remaining int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}
