package rhom

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lockedBuffer lets async listeners log while a test reads the output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogger() (*slog.Logger, *lockedBuffer) {
	buf := &lockedBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// tracker records hook invocations in order.
type tracker struct {
	mu    sync.Mutex
	calls []string
}

func (t *tracker) listener(name string) Listener {
	return func(*Event) {
		t.mu.Lock()
		t.calls = append(t.calls, name)
		t.mu.Unlock()
	}
}

func (t *tracker) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// mapStore is a storage-like plugin over a map. With async set, primary
// listeners settle from a goroutine the way a networked store would.
type mapStore struct {
	async bool

	mu   sync.Mutex
	data map[string]map[string]any

	gets  atomic.Int32
	saves atomic.Int32
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]map[string]any)}
}

func (s *mapStore) Name() string        { return "MapStore" }
func (s *mapStore) Description() string { return "Map-backed storage" }

func (s *mapStore) run(fn func()) {
	if s.async {
		go fn()
		return
	}
	fn()
}

func (s *mapStore) Install(d *Descriptor) error {
	d.Subscribe(Primary(OpGet), func(ev *Event) {
		if ev.Handled() {
			return
		}
		s.gets.Add(1)
		id, _ := ev.Data().(string)
		s.run(func() {
			s.mu.Lock()
			raw, ok := s.data[id]
			s.mu.Unlock()
			if !ok {
				ev.Success(nil)
				return
			}
			ev.Success(d.Hydrate(id, raw))
		})
	})
	d.Subscribe(Primary(OpSave), func(ev *Event) {
		if ev.Handled() {
			return
		}
		s.saves.Add(1)
		inst := ev.Instance()
		s.run(func() {
			s.mu.Lock()
			s.data[inst.ID()] = inst.ToFieldMap()
			s.mu.Unlock()
			ev.Success(inst)
		})
	})
	d.Subscribe(Primary(OpDelete), func(ev *Event) {
		if ev.Handled() {
			return
		}
		s.run(func() {
			s.mu.Lock()
			delete(s.data, ev.Instance().ID())
			s.mu.Unlock()
			ev.Success(true)
		})
	})
	d.Subscribe(Primary(OpAll), func(ev *Event) {
		s.run(func() {
			s.mu.Lock()
			ids := make([]string, 0, len(s.data))
			for id := range s.data {
				ids = append(ids, id)
			}
			s.mu.Unlock()
			ev.Success(ids)
		})
	})
	d.Subscribe(Primary(OpPurge), func(ev *Event) {
		s.run(func() {
			s.mu.Lock()
			s.data = make(map[string]map[string]any)
			s.mu.Unlock()
			ev.Success(true)
		})
	})
	return nil
}

// mapCache answers beforeGet from a map filled by afterSave.
type mapCache struct {
	mu    sync.Mutex
	items map[string]*Instance
	hits  atomic.Int32
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]*Instance)}
}

func (c *mapCache) Name() string        { return "MapCache" }
func (c *mapCache) Description() string { return "Map-backed cache" }

func (c *mapCache) Install(d *Descriptor) error {
	d.Subscribe(Before(OpGet), func(ev *Event) {
		id, _ := ev.Data().(string)
		c.mu.Lock()
		inst, ok := c.items[id]
		c.mu.Unlock()
		if ok {
			c.hits.Add(1)
			ev.Success(inst)
		}
	})
	d.Subscribe(After(OpSave), func(ev *Event) {
		if ev.Err() != nil {
			return
		}
		inst := ev.Instance()
		c.mu.Lock()
		c.items[inst.ID()] = inst
		c.mu.Unlock()
	})
	return nil
}
