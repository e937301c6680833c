package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	expiresAt time.Time // zero means never
	value     V
}

// Memory is a process-local cache. Expired entries are dropped lazily on Get
// and in bulk whenever the map grows past the previous high-water mark.
type Memory[V any] struct {
	items      map[string]entry[V]
	now        func() time.Time
	defaultTTL time.Duration
	sweepAt    int
	mu         sync.Mutex
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	now        func() time.Time
	defaultTTL time.Duration
}

// WithDefaultTTL is applied when Set receives a zero TTL. Default: 5 minutes.
func WithDefaultTTL(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.defaultTTL = d
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewMemory creates an empty in-memory cache.
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := &memoryOptions{now: time.Now, defaultTTL: 5 * time.Minute}
	for _, opt := range opts {
		opt(o)
	}
	return &Memory[V]{
		items:      make(map[string]entry[V]),
		now:        o.now,
		defaultTTL: o.defaultTTL,
		sweepAt:    64,
	}
}

// Get returns ErrNotFound for missing or expired keys.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if ok && m.expired(e) {
		delete(m.items, key)
		ok = false
	}
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Set stores value under key.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = m.defaultTTL
	}
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e

	if len(m.items) >= m.sweepAt {
		m.sweep()
		m.sweepAt = max(2*len(m.items), 64)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory[V]) expired(e entry[V]) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}

func (m *Memory[V]) sweep() {
	for k, e := range m.items {
		if m.expired(e) {
			delete(m.items, k)
		}
	}
}

var _ Cache[any] = (*Memory[any])(nil)
