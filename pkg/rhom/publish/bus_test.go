package publish_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/rhom/pkg/rhom/publish"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records delivered notices.
type collector struct {
	mu      sync.Mutex
	notices []publish.Notice
}

func (c *collector) handle(_ context.Context, n publish.Notice) error {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()
	return nil
}

func (c *collector) channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.notices))
	for i, n := range c.notices {
		out[i] = n.Channel
	}
	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notices)
}

func TestBus_PrefixMatching(t *testing.T) {
	bus := publish.NewBus(publish.BusConfig{BufferSize: 10})
	defer bus.Close()

	var users, one, all collector
	require.NotNil(t, bus.Subscribe("User:", users.handle))
	require.NotNil(t, bus.Subscribe("User:1:", one.handle))
	require.NotNil(t, bus.Subscribe("", all.handle))

	ctx := context.Background()
	for _, ch := range []string{"User:1:save", "User:2:save", "Book:1:delete", "User:purge"} {
		require.NoError(t, bus.Publish(ctx, publish.Notice{Channel: ch}))
	}

	assert.Eventually(t, func() bool { return all.len() == 4 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return users.len() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"User:1:save", "User:2:save", "User:purge"}, users.channels(), "delivered in publish order")
	assert.Eventually(t, func() bool { return one.len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBus_PauseResume(t *testing.T) {
	bus := publish.NewBus(publish.BusConfig{BufferSize: 10})
	defer bus.Close()

	var c collector
	sub := bus.Subscribe("", c.handle)
	sub.Pause()
	assert.True(t, sub.IsPaused())

	require.NoError(t, bus.Publish(context.Background(), publish.Notice{Channel: "skipped"}))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, c.len())

	sub.Resume()
	assert.False(t, sub.IsPaused())
	require.NoError(t, bus.Publish(context.Background(), publish.Notice{Channel: "delivered"}))
	assert.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"delivered"}, c.channels())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := publish.NewBus(publish.DefaultBusConfig)
	defer bus.Close()

	var c collector
	sub := bus.Subscribe("", c.handle)
	sub.Unsubscribe()
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), publish.Notice{Channel: "x"}))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, c.len())
}

func TestBus_NonBlockingDrops(t *testing.T) {
	var dropped atomic.Int32
	bus := publish.NewBus(publish.BusConfig{
		BufferSize:  1,
		NonBlocking: true,
		OnDrop:      func(publish.Notice, string) { dropped.Add(1) },
	})
	defer bus.Close()

	release := make(chan struct{})
	bus.Subscribe("", func(context.Context, publish.Notice) error {
		<-release
		return nil
	})

	for range 5 {
		require.NoError(t, bus.Publish(context.Background(), publish.Notice{Channel: "x"}))
	}
	close(release)
	assert.GreaterOrEqual(t, dropped.Load(), int32(3))
}

func TestBus_BlockingHonorsContext(t *testing.T) {
	bus := publish.NewBus(publish.BusConfig{BufferSize: 1})
	defer bus.Close()

	release := make(chan struct{})
	defer close(release)
	bus.Subscribe("", func(context.Context, publish.Notice) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for range 3 {
		if err = bus.Publish(ctx, publish.Notice{Channel: "x"}); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBus_OnError(t *testing.T) {
	errc := make(chan error, 1)
	bus := publish.NewBus(publish.BusConfig{
		OnError: func(_ publish.Notice, _ string, err error) { errc <- err },
	})
	defer bus.Close()

	boom := errors.New("boom")
	bus.Subscribe("", func(context.Context, publish.Notice) error { return boom })
	require.NoError(t, bus.Publish(context.Background(), publish.Notice{Channel: "x"}))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("OnError not called")
	}
}

func TestBus_Closed(t *testing.T) {
	bus := publish.NewBus(publish.DefaultBusConfig)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), publish.Notice{Channel: "x"})
	assert.ErrorIs(t, err, publish.ErrBusClosed)
	assert.Nil(t, bus.Subscribe("", func(context.Context, publish.Notice) error { return nil }))
}

func TestBus_CloseDeliversBuffered(t *testing.T) {
	bus := publish.NewBus(publish.BusConfig{BufferSize: 10})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var got collector
	bus.Subscribe("", func(ctx context.Context, n publish.Notice) error {
		select {
		case started <- struct{}{}:
			<-release
		default:
		}
		return got.handle(ctx, n)
	})

	ctx := context.Background()
	for _, ch := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Publish(ctx, publish.Notice{Channel: ch}))
	}
	<-started
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(ctx, publish.Notice{Channel: "d"}), publish.ErrBusClosed)
	close(release)

	assert.Eventually(t, func() bool { return got.len() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got.channels())
}

func TestBus_CloseReportsPausedAsDropped(t *testing.T) {
	var mu sync.Mutex
	var dropped []string
	bus := publish.NewBus(publish.BusConfig{
		BufferSize: 10,
		OnDrop: func(n publish.Notice, _ string) {
			mu.Lock()
			dropped = append(dropped, n.Channel)
			mu.Unlock()
		},
	})

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var got collector
	sub := bus.Subscribe("", func(ctx context.Context, n publish.Notice) error {
		select {
		case started <- struct{}{}:
			<-release
		default:
		}
		return got.handle(ctx, n)
	})

	ctx := context.Background()
	for _, ch := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Publish(ctx, publish.Notice{Channel: ch}))
	}
	<-started
	sub.Pause()
	require.NoError(t, bus.Close())
	close(release)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dropped) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"b", "c"}, dropped)
	mu.Unlock()
	assert.Equal(t, []string{"a"}, got.channels())
}
