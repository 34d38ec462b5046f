package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Locker. Each held key owns a one-slot channel; entries are
// dropped once no goroutine holds or waits on them.
type Memory struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemory returns a Memory locker. A wait of 0 waits until ctx is done.
func NewMemory(wait time.Duration) *Memory {
	return &Memory{slots: make(map[string]*slot), wait: wait}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	s := m.ref(key)

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.wait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, m.wait)
	}
	defer cancel()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				m.unref(key, s)
			})
		}, nil
	case <-waitCtx.Done():
		m.unref(key, s)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrTimeout, key)
	}
}

func (m *Memory) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *Memory) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
