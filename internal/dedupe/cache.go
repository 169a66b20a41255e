// ABOUTME: Bounded, time-windowed seen-set for suppressing duplicate tool call IDs.
// ABOUTME: Expired and overflow entries are pruned lazily on each write; no background goroutine.

package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	key    string
	seenAt time.Time
}

// Cache remembers keys for ttl, holding at most maxSize of them.
// When full, the oldest key is forgotten first.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	order   []entry // oldest first; may contain stale entries for re-marked keys
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache. Non-positive arguments fall back to 10 minutes and 1024 keys.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen reports whether key was marked within the window.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key, c.now())
}

// CheckAndMark marks key and reports whether it was already live.
// The check and the mark happen under one lock.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.liveLocked(key, now) {
		return true
	}
	c.pruneLocked(now)
	c.seen[key] = now
	c.order = append(c.order, entry{key: key, seenAt: now})
	return false
}

// Forget drops key so it is treated as new again.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
}

// Len returns the number of live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, at := range c.seen {
		if now.Sub(at) < c.ttl {
			n++
		}
	}
	return n
}

func (c *Cache) liveLocked(key string, now time.Time) bool {
	at, ok := c.seen[key]
	return ok && now.Sub(at) < c.ttl
}

// pruneLocked drops expired keys from the front and makes room for one more.
func (c *Cache) pruneLocked(now time.Time) {
	drop := 0
	for drop < len(c.order) {
		e := c.order[drop]
		at, ok := c.seen[e.key]
		switch {
		case !ok || !at.Equal(e.seenAt):
			// forgotten or superseded
		case now.Sub(at) >= c.ttl || len(c.seen) >= c.maxSize:
			delete(c.seen, e.key)
		default:
			c.order = c.order[drop:]
			return
		}
		drop++
	}
	c.order = c.order[:0]
}
