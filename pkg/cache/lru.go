package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key      K
	val      V
	deadline time.Time // zero: never expires
}

// LRUCache is a fixed-capacity cache that evicts the least recently used
// entry and can expire entries a fixed time after they were written.
type LRUCache[K comparable, V any] struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	now     func() time.Time
	index   map[K]*list.Element
	order   *list.List // front is most recently used
	onEvict func(K, V)
}

// Option configures an LRUCache.
type Option func(*settings)

type settings struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL expires entries d after their last Put. Non-positive d is ignored.
func WithTTL(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLRUCache panics when capacity is not positive.
func NewLRUCache[K comparable, V any](capacity int, opts ...Option) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return &LRUCache[K, V]{
		max:   capacity,
		ttl:   s.ttl,
		now:   s.now,
		index: make(map[K]*list.Element, capacity),
		order: list.New(),
	}
}

// SetEvictCallback registers fn for every entry leaving the cache, whether
// by capacity, expiry, Remove or Clear.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns a live value and marks it recently used.
func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el := c.live(key)
	if el == nil {
		return value, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).val, true
}

// Put stores value, restarting its TTL, and returns the previous live value.
func (c *LRUCache[K, V]) Put(key K, value V) (prev V, replaced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el := c.live(key); el != nil {
		e := el.Value.(*entry[K, V])
		prev, replaced = e.val, true
		e.val, e.deadline = value, c.deadline()
		c.order.MoveToFront(el)
		return prev, replaced
	}

	c.index[key] = c.order.PushFront(&entry[K, V]{key: key, val: value, deadline: c.deadline()})
	for c.order.Len() > c.max {
		c.drop(c.order.Back())
	}
	return prev, false
}

// Remove deletes key and returns the value it held, expired or not.
func (c *LRUCache[K, V]) Remove(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return value, false
	}
	c.drop(el)
	return el.Value.(*entry[K, V]).val, true
}

// Len counts stored entries, including expired ones not yet collected.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear empties the cache.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.order.Len() > 0 {
		c.drop(c.order.Back())
	}
}

// live returns the element for key, collecting it first if it has expired.
func (c *LRUCache[K, V]) live(key K) *list.Element {
	el, ok := c.index[key]
	if !ok {
		return nil
	}
	if d := el.Value.(*entry[K, V]).deadline; !d.IsZero() && !c.now().Before(d) {
		c.drop(el)
		return nil
	}
	return el
}

func (c *LRUCache[K, V]) deadline() time.Time {
	if c.ttl == 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *LRUCache[K, V]) drop(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.index, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, e.val)
	}
}
