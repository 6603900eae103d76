package messagebus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/ticketon/transport"
)

func TestInMemoryAdapter_PublishSubscribe(t *testing.T) {
	bus := NewInMemoryAdapter(InMemoryConfig{EnableOrdering: true})
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))

	var received *transport.Message
	err := bus.Subscribe(ctx, "ticket.booked", func(ctx context.Context, msg *transport.Message) error {
		received = msg
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(ctx, "ticket.booked", []byte(`{"ticketId":"t-1"}`), map[string]string{"source": "test"})
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.Equal(t, "ticket.booked", received.Subject)
	assert.Equal(t, []byte(`{"ticketId":"t-1"}`), received.Data)
	assert.Equal(t, "test", received.Headers["source"])
}

func TestInMemoryAdapter_FanOut(t *testing.T) {
	bus := NewInMemoryAdapter(InMemoryConfig{EnableOrdering: true})
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))

	var count int32
	handler := func(ctx context.Context, msg *transport.Message) error {
		atomic.AddInt32(&count, 1)
		return nil
	}

	require.NoError(t, bus.Subscribe(ctx, "payment.processed", handler))
	require.NoError(t, bus.Subscribe(ctx, "payment.processed", handler))

	require.NoError(t, bus.Publish(ctx, "payment.processed", []byte("{}"), nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&count))
}

func TestInMemoryAdapter_WildcardSubscription(t *testing.T) {
	bus := NewInMemoryAdapter(InMemoryConfig{EnableOrdering: true})
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))

	var subjects []string
	var mu sync.Mutex
	require.NoError(t, bus.Subscribe(ctx, "payment.*", func(ctx context.Context, msg *transport.Message) error {
		mu.Lock()
		subjects = append(subjects, msg.Subject)
		mu.Unlock()
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "payment.initiated", []byte("{}"), nil))
	require.NoError(t, bus.Publish(ctx, "payment.failed", []byte("{}"), nil))
	require.NoError(t, bus.Publish(ctx, "ticket.booked", []byte("{}"), nil))

	assert.ElementsMatch(t, []string{"payment.initiated", "payment.failed"}, subjects)
}

func TestInMemoryAdapter_Unsubscribe(t *testing.T) {
	bus := NewInMemoryAdapter(DefaultInMemoryConfig())
	ctx := context.Background()
	require.NoError(t, bus.Start(ctx))

	require.NoError(t, bus.Subscribe(ctx, "ticket.cancelled", func(ctx context.Context, msg *transport.Message) error {
		return nil
	}))
	assert.Equal(t, 1, bus.GetSubscriberCount("ticket.cancelled"))

	require.NoError(t, bus.Unsubscribe("ticket.cancelled"))
	assert.Equal(t, 0, bus.GetSubscriberCount("ticket.cancelled"))
}

func TestInMemoryAdapter_Lifecycle(t *testing.T) {
	bus := NewInMemoryAdapter(DefaultInMemoryConfig())
	ctx := context.Background()

	assert.False(t, bus.IsRunning())
	require.NoError(t, bus.Start(ctx))
	assert.True(t, bus.IsRunning())
	require.NoError(t, bus.Stop(ctx))
	assert.False(t, bus.IsRunning())
}

func TestMatchSubject(t *testing.T) {
	cases := []struct {
		subject string
		pattern string
		want    bool
	}{
		{"payment.initiated", "payment.initiated", true},
		{"payment.initiated", "payment.*", true},
		{"payment.initiated", "payment.>", true},
		{"payment.initiated.v2", "payment.*", false},
		{"payment.initiated.v2", "payment.>", true},
		{"ticket.booked", "payment.*", false},
		{"payment", "payment.*", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchSubject(c.subject, c.pattern), "subject=%s pattern=%s", c.subject, c.pattern)
	}
}

func TestMessageBusFactory(t *testing.T) {
	factory := NewMessageBusFactory()

	bus, err := factory.Create("inmemory", nil)
	require.NoError(t, err)
	assert.NotNil(t, bus)

	_, err = factory.Create("bogus", nil)
	assert.Error(t, err)

	err = factory.Register("inmemory", func(config interface{}) (transport.MessageBus, error) {
		return nil, nil
	})
	assert.Error(t, err, "duplicate registration must fail")
}
