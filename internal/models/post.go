// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// MediaType distinguishes uploaded media kinds.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	return t == MediaTypeImage || t == MediaTypeVideo
}

// Post represents a post in the ESPA social network.
type Post struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	User        User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	Description string `gorm:"type:text" json:"description"`
	Location    string `gorm:"size:255" json:"location,omitempty"`
	Deletable
	Media    []Media   `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"media"`
	Hashtags []Hashtag `gorm:"many2many:post_hashtags;constraint:OnDelete:CASCADE" json:"hashtags"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// DislikesCount is not persisted; computed at query time
	DislikesCount int64 `gorm:"->;-:migration" json:"dislikes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
	// ViewerHasLiked indicates whether the requesting user liked this post (computed)
	ViewerHasLiked bool `gorm:"->;-:migration" json:"viewer_has_liked"`
	// TrendingScore is only populated by trending reads.
	TrendingScore float64   `gorm:"->;-:migration" json:"trending_score,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Media is a file attached to a post.
type Media struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	File      string    `gorm:"not null" json:"file"`
	Caption   string    `gorm:"size:255" json:"caption,omitempty"`
	Type      MediaType `gorm:"type:varchar(10);not null;default:'image'" json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Media) TableName() string {
	return "media"
}

// Hashtag is a normalised lowercase tag shared between posts.
type Hashtag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:100;uniqueIndex;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	// PostsCount is populated by hashtag listings.
	PostsCount int64 `gorm:"->;-:migration" json:"posts_count,omitempty"`
}
