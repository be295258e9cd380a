package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// sweepEvery is the number of writes between two sweeps of expired entries.
const sweepEvery = 100

// Cache stores values with an expiration time. It is safe for concurrent use.
type Cache[K comparable, V any] struct {
	items           sync.Map
	writes          atomic.Uint32
	defaultDuration time.Duration
	now             func() time.Time
}

type entry[V any] struct {
	value   V
	expires int64
}

// New creates a cache whose entries expire after defaultDuration unless Set
// is given an explicit duration.
func New[K comparable, V any](defaultDuration time.Duration) *Cache[K, V] {
	if defaultDuration <= 0 {
		defaultDuration = 10 * time.Minute
	}
	return &Cache[K, V]{
		defaultDuration: defaultDuration,
		now:             time.Now,
	}
}

// Set stores value under key. A zero duration uses the default; a negative
// duration stores the value forever.
func (c *Cache[K, V]) Set(key K, value V, duration time.Duration) {
	var expires int64

	if duration == 0 {
		duration = c.defaultDuration
	}
	if duration > 0 {
		expires = c.now().Add(duration).UnixNano()
	}

	c.items.Store(key, entry[V]{value: value, expires: expires})

	if c.writes.Add(1) >= sweepEvery {
		c.DeleteExpired()
		c.writes.Store(0)
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	obj, ok := c.items.Load(key)
	if !ok {
		return zero, false
	}

	e := obj.(entry[V])
	if e.expires > 0 && c.now().UnixNano() > e.expires {
		c.items.Delete(key)
		return zero, false
	}

	return e.value, true
}

// DeleteExpired removes every expired entry.
func (c *Cache[K, V]) DeleteExpired() {
	now := c.now().UnixNano()

	c.items.Range(func(key, value any) bool {
		e := value.(entry[V])
		if e.expires > 0 && now > e.expires {
			c.items.Delete(key)
		}
		return true
	})
}

// Len counts the live entries. Expired entries that were not swept yet are
// not counted.
func (c *Cache[K, V]) Len() int {
	now := c.now().UnixNano()
	n := 0
	c.items.Range(func(_, value any) bool {
		e := value.(entry[V])
		if e.expires == 0 || now <= e.expires {
			n++
		}
		return true
	})
	return n
}
