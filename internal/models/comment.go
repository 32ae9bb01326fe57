// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// MaxCommentLength bounds comment and reply content in runes.
const MaxCommentLength = 10000

// Comment represents a comment on a post, or a reply to another comment.
// Replies are one level deep: a reply's ParentID always names a top-level comment.
type Comment struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Content  string    `gorm:"type:text;not null" json:"content"`
	UserID   uint      `gorm:"not null;index" json:"user_id"`
	PostID   uint      `gorm:"not null;index" json:"post_id"`
	ParentID *uint     `gorm:"index" json:"parent_id,omitempty"`
	User     User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Post     *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"post,omitempty"`
	Parent   *Comment  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Replies  []Comment `gorm:"-" json:"replies,omitempty"`
	// Computed at query time.
	LikesCount     int64     `gorm:"->;-:migration" json:"likes_count"`
	RepliesCount   int64     `gorm:"->;-:migration" json:"replies_count"`
	ViewerHasLiked bool      `gorm:"->;-:migration" json:"viewer_has_liked"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsReply reports whether c answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}
