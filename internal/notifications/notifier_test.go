package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type delivery struct {
	userID  uint
	payload string
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "x"))
	assert.NoError(t, n.StartSubscriber(context.Background(), func(uint, string) {}))
	n.Publish(context.Background(), 1, service.ActivityEvent{Type: service.EventFollowCreated, ActorID: 2})
}

func TestUserChannel(t *testing.T) {
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
		id, ok := parseUserChannel(tt.expected)
		assert.True(t, ok)
		assert.Equal(t, tt.userID, id)
	}

	for _, bad := range []string{"notifications:user:", "notifications:user:abc", "notifications:user:0", "chat:conv:1"} {
		_, ok := parseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestNotifier_PublishReachesSubscriber(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan delivery, 4)
	require.NoError(t, n.StartSubscriber(ctx, func(userID uint, payload string) {
		got <- delivery{userID, payload}
	}))

	// Self-notifications and anonymous recipients are dropped.
	n.Publish(ctx, 7, service.ActivityEvent{Type: service.EventCommentCreated, ActorID: 7})
	n.Publish(ctx, 0, service.ActivityEvent{Type: service.EventCommentCreated, ActorID: 3})
	n.Publish(ctx, 7, service.ActivityEvent{
		Type:    service.EventCommentCreated,
		ActorID: 3,
		Payload: map[string]interface{}{"post_id": 11},
	})

	select {
	case d := <-got:
		assert.Equal(t, uint(7), d.userID)
		var ev service.ActivityEvent
		require.NoError(t, json.Unmarshal([]byte(d.payload), &ev))
		assert.Equal(t, service.EventCommentCreated, ev.Type)
		assert.Equal(t, uint(3), ev.ActorID)
		assert.EqualValues(t, 11, ev.Payload["post_id"])
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	assert.Never(t, func() bool { return len(got) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 2)
	require.NoError(t, n.StartSubscriber(ctx, func(_ uint, payload string) { got <- payload }))

	require.NoError(t, n.PublishUser(context.Background(), 1, "before-cancel"))
	assert.Eventually(t, func() bool { return len(got) == 1 }, time.Second, 10*time.Millisecond)
	<-got

	cancel()
	time.Sleep(20 * time.Millisecond)

	_ = n.PublishUser(context.Background(), 1, "after-cancel")
	assert.Never(t, func() bool { return len(got) > 0 }, 200*time.Millisecond, 10*time.Millisecond)
}
