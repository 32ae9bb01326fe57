package service

import "context"

// Activity event types delivered to the owner of the affected content.
const (
	EventPostReactionUpdated = "post_reaction_updated"
	EventCommentCreated      = "comment_created"
	EventReplyCreated        = "reply_created"
	EventFollowCreated       = "follow_created"
)

// ActivityEvent describes something another user did to the recipient's content.
type ActivityEvent struct {
	Type    string                 `json:"type"`
	ActorID uint                   `json:"actor_id"`
	Payload map[string]interface{} `json:"payload"`
}

// ActivityPublisher delivers activity events. Delivery is best-effort and
// never fails the write that produced the event.
type ActivityPublisher interface {
	Publish(ctx context.Context, recipientID uint, ev ActivityEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, uint, ActivityEvent) {}
