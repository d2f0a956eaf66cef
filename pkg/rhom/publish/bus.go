package publish

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("bus is closed")

// Notice announces a change to stored data.
type Notice struct {
	// Channel is "<prefix><id>:save", "<prefix><id>:delete" or
	// "<prefix>purge".
	Channel string
	// NodeID identifies the publishing process.
	NodeID string
	Type   string
	Op     rhom.Op
	// ID is empty for purge notices.
	ID string
}

// Handler receives notices for a subscription.
type Handler func(ctx context.Context, n Notice) error

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()

	// Pause temporarily stops delivery.
	Pause()

	// Resume continues delivery after pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// NonBlocking makes Publish non-blocking (drops notices if buffer full).
	// Default: false (blocking)
	NonBlocking bool

	// OnDrop is called when a notice is dropped: the buffer was full in
	// non-blocking mode, or Close found it buffered for a paused
	// subscription.
	OnDrop func(n Notice, subscriberID string)

	// OnError is called when a handler returns an error.
	OnError func(n Notice, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// Bus is an in-memory notice bus. Subscriptions match on channel prefix,
// and each one delivers in publish order on its own goroutine.
type Bus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription

	nextID atomic.Int64
	closed atomic.Bool
	// sending is held shared by Publish while it enqueues, so Close can
	// wait out in-flight sends before subscriptions drain.
	sending sync.RWMutex
	closeCh chan struct{}
	drainCh chan struct{}
}

// NewBus creates a new notice bus.
func NewBus(config BusConfig) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	return &Bus{
		config:        config,
		subscriptions: make(map[string]*subscription),
		closeCh:       make(chan struct{}),
		drainCh:       make(chan struct{}),
	}
}

type subscription struct {
	id      string
	prefix  string
	handler Handler
	notices chan Notice
	paused  atomic.Bool
	done    chan struct{}
	stop    sync.Once
	bus     *Bus
}

// Publish delivers n to every subscription whose prefix matches its
// channel. In blocking mode it waits for buffer space, ctx, or Close.
func (b *Bus) Publish(ctx context.Context, n Notice) error {
	b.sending.RLock()
	defer b.sending.RUnlock()

	if b.closed.Load() {
		return ErrBusClosed
	}

	b.mu.RLock()
	subs := b.matching(n.Channel)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.paused.Load() {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.notices <- n:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(n, sub.id)
				}
			}
			continue
		}

		select {
		case sub.notices <- n:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return ErrBusClosed
		}
	}
	return nil
}

// Subscribe delivers notices whose channel starts with prefix. An empty
// prefix matches everything. It returns nil once the bus is closed.
func (b *Bus) Subscribe(prefix string, handler Handler) Subscription {
	if b.closed.Load() || handler == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		id:      strconv.FormatInt(b.nextID.Add(1), 10),
		prefix:  prefix,
		handler: handler,
		notices: make(chan Notice, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}
	b.subscriptions[sub.id] = sub

	go sub.process()

	return sub
}

func (b *Bus) matching(channel string) []*subscription {
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if strings.HasPrefix(channel, sub.prefix) {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Close stops accepting notices and shuts down every subscription.
// Notices already buffered are still handed to their handlers in the
// background; for paused subscriptions they go to OnDrop instead. Close
// does not wait for handlers to finish.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Unblocks publishers waiting for buffer space.
	close(b.closeCh)
	b.sending.Lock()
	close(b.drainCh)
	b.sending.Unlock()
	return nil
}

func (s *subscription) process() {
	for {
		select {
		case n := <-s.notices:
			s.handle(n)

		case <-s.bus.drainCh:
			s.drain()
			return

		case <-s.done:
			return
		}
	}
}

// handle delivers n unless the subscription is paused. Paused notices are
// discarded, and reported to OnDrop once the bus is closed.
func (s *subscription) handle(n Notice) {
	if s.paused.Load() {
		if s.bus.closed.Load() && s.bus.config.OnDrop != nil {
			s.bus.config.OnDrop(n, s.id)
		}
		return
	}
	if err := s.handler(context.Background(), n); err != nil && s.bus.config.OnError != nil {
		s.bus.config.OnError(n, s.id, err)
	}
}

// drain empties the buffer after Close. No sends can follow it.
func (s *subscription) drain() {
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case n := <-s.notices:
			s.handle(n)
		default:
			return
		}
	}
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subscriptions, s.id)
	s.stop.Do(func() { close(s.done) })
}

// Pause temporarily stops delivery.
func (s *subscription) Pause() {
	s.paused.Store(true)
}

// Resume continues delivery after pause.
func (s *subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused returns true if the subscription is paused.
func (s *subscription) IsPaused() bool {
	return s.paused.Load()
}
