package models

import (
	"fmt"
	"time"
)

// TargetType names the kind of entity a reaction points at.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
)

// ParseTargetType accepts the wire names used by the API.
func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetPost, TargetComment:
		return TargetType(s), nil
	}
	return "", NewValidationError(fmt.Sprintf("unsupported target type %q", s))
}

// Target identifies a reactable entity.
type Target struct {
	Type TargetType `json:"target_type"`
	ID   uint       `json:"target_id"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Type, t.ID)
}

// ReactionKind is like or dislike.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

// Reaction is a user's like or dislike on a post or comment.
// A user holds at most one reaction per target.
type Reaction struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	UserID     uint         `gorm:"not null;uniqueIndex:idx_reactions_user_target" json:"user_id"`
	TargetType TargetType   `gorm:"type:varchar(20);not null;uniqueIndex:idx_reactions_user_target;index:idx_reactions_target" json:"target_type"`
	TargetID   uint         `gorm:"not null;uniqueIndex:idx_reactions_user_target;index:idx_reactions_target" json:"target_id"`
	Kind       ReactionKind `gorm:"type:varchar(10);not null;default:'like'" json:"kind"`
	CreatedAt  time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Target returns the reacted entity.
func (r *Reaction) Target() Target {
	return Target{Type: r.TargetType, ID: r.TargetID}
}

// ReactionOutcome reports what a react call did to the stored row.
type ReactionOutcome string

const (
	ReactionAdded   ReactionOutcome = "added"
	ReactionChanged ReactionOutcome = "changed"
	ReactionRemoved ReactionOutcome = "removed"
)
