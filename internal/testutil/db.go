// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/database"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPassword is the plain-text password of every fixture user.
const DefaultPassword = "Secret123!"

// NewDB returns an isolated in-memory SQLite database with every persistent
// model migrated. The single connection keeps the shared-cache database
// alive and serialises writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser inserts an active user whose password is DefaultPassword.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  string(hash),
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Tester",
		IsActive:  true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a visible post owned by userID.
func CreatePost(t testing.TB, db *gorm.DB, userID uint, description string) *models.Post {
	t.Helper()
	post := &models.Post{UserID: userID, Description: description}
	require.NoError(t, db.Omit("User").Create(post).Error)
	return post
}

// CreateComment inserts a comment, or a reply when parentID is non-nil.
func CreateComment(t testing.TB, db *gorm.DB, userID, postID uint, parentID *uint, content string) *models.Comment {
	t.Helper()
	comment := &models.Comment{UserID: userID, PostID: postID, ParentID: parentID, Content: content}
	require.NoError(t, db.Omit("User", "Post", "Parent").Create(comment).Error)
	return comment
}

// React inserts a reaction row directly.
func React(t testing.TB, db *gorm.DB, userID uint, target models.Target, kind models.ReactionKind) {
	t.Helper()
	require.NoError(t, db.Omit("User").Create(&models.Reaction{
		UserID:     userID,
		TargetType: target.Type,
		TargetID:   target.ID,
		Kind:       kind,
	}).Error)
}
