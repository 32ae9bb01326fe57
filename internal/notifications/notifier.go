// Package notifications delivers activity events to connected users through
// Redis pub/sub and WebSocket connections.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/observability"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// Notifier publishes activity events into per-user Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish implements service.ActivityPublisher. Events addressed to nobody
// or to the actor are dropped, and failures are only logged.
func (n *Notifier) Publish(ctx context.Context, recipientID uint, ev service.ActivityEvent) {
	if recipientID == 0 || recipientID == ev.ActorID {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "marshal activity event", "type", ev.Type, "error", err.Error())
		return
	}
	if err := n.PublishUser(ctx, recipientID, string(payload)); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "publish activity event failed",
			"type", ev.Type,
			"recipient_id", recipientID,
			"error", err.Error(),
		)
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(ev.Type).Inc()
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// StartSubscriber subscribes to every user channel and calls onMessage with
// the recipient id and payload until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(userID uint, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe activity channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID, ok := parseUserChannel(msg.Channel)
				if !ok {
					observability.GlobalLogger.Warn("invalid notification channel", "channel", msg.Channel)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in activity subscriber",
								"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
						}
					}()
					onMessage(userID, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

func parseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
