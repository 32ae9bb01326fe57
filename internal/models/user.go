// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Deletable is embedded by entities that support soft deletion.
// Rows are never removed; readers filter on is_deleted.
type Deletable struct {
	IsDeleted bool `gorm:"not null;default:false;index" json:"-"`
}

// SoftDelete marks d as deleted.
func SoftDelete(d *Deletable) { d.IsDeleted = true }

// Restore clears the deleted mark on d.
func Restore(d *Deletable) { d.IsDeleted = false }

// User represents an account in the ESPA social network.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Username  string `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email     string `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	FirstName string `gorm:"size:150" json:"first_name"`
	LastName  string `gorm:"size:150" json:"last_name"`
	Phone     string `gorm:"size:32" json:"phone,omitempty"`
	Bio       string `gorm:"type:text" json:"bio"`
	Avatar    string `json:"avatar"`
	Location  string `gorm:"size:255" json:"location,omitempty"`
	Website   string `gorm:"size:255" json:"website,omitempty"`
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`
	IsAdmin   bool   `gorm:"not null;default:false" json:"is_admin"`
	Deletable
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Computed on profile reads.
	FollowersCount int64 `gorm:"-" json:"followers_count"`
	FollowingCount int64 `gorm:"-" json:"following_count"`
}

// CanAuthenticate reports whether the account may establish an identity.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.IsActive && !u.IsDeleted
}
