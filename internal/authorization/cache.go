package authorization

import (
	"sync"
	"time"

	"github.com/WirelessCar/b2-operator/internal/b2"
)

// TimestampedAuthorization is a cached B2 authorization and the time it was obtained.
type TimestampedAuthorization struct {
	Authorization *b2.Authorization
	CreatedAt     time.Time
}

// Age returns how long ago the authorization was obtained.
func (t TimestampedAuthorization) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// Cache holds at most one authorization per B2 key id. It is safe for
// concurrent use; the lock only guards the in-memory map.
type Cache struct {
	mu      sync.Mutex
	entries map[string]TimestampedAuthorization
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]TimestampedAuthorization),
	}
}

func (c *Cache) Contains(keyID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[keyID]
	return ok
}

func (c *Cache) Get(keyID string) (TimestampedAuthorization, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	auth, ok := c.entries[keyID]
	return auth, ok
}

// Insert stores auth for keyID, replacing any previous entry.
func (c *Cache) Insert(keyID string, auth TimestampedAuthorization) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[keyID] = auth
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
