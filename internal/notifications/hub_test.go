package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterLimits(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(1, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(1, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)
	assert.Equal(t, maxConnsPerUser, hub.ConnectionCount(1))

	_, err = hub.Register(2, nil)
	assert.NoError(t, err, "the limit is per user")
}

func TestHub_DeliverAndUnregister(t *testing.T) {
	hub := NewHub()
	a, err := hub.Register(5, nil)
	require.NoError(t, err)
	b, err := hub.Register(5, nil)
	require.NoError(t, err)
	other, err := hub.Register(6, nil)
	require.NoError(t, err)

	hub.Deliver(5, `{"type":"follow_created"}`)
	assert.Equal(t, `{"type":"follow_created"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"follow_created"}`, string(<-b.Send))
	assert.Empty(t, other.Send)

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.ConnectionCount(5))

	_, open := <-a.Send
	assert.False(t, open, "unregistering closes the send queue")

	// Sending to a closed client must not panic.
	a.TrySend([]byte("late"))
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(9, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(3, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, open := <-c.Send
	assert.False(t, open)
	assert.Zero(t, hub.ConnectionCount(3))

	_, err = hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_StartWiringForwardsRedisMessages(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := hub.Register(42, nil)
	require.NoError(t, err)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishUser(ctx, 42, "hello"))
	select {
	case msg := <-c.Send:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("message was not forwarded")
	}
}
