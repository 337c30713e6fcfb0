package cache

import (
	"sync"
	"time"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

// DiscountCache keeps discount records by normalized code for a short TTL.
// Usage counters in cached records may lag the store; redemption re-checks
// them under a row lock.
type DiscountCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	store map[string]entry
}

type entry struct {
	discount models.Discount
	expires  time.Time
}

func NewDiscountCache(ttl time.Duration, now func() time.Time) *DiscountCache {
	if now == nil {
		now = time.Now
	}
	return &DiscountCache{
		ttl:   ttl,
		now:   now,
		store: make(map[string]entry),
	}
}

func (c *DiscountCache) Get(code string) (models.Discount, bool) {
	key := models.NormalizeCode(code)
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return models.Discount{}, false
	}
	if c.now().After(e.expires) {
		c.mu.Lock()
		// a Set may have refreshed the entry since the read lock was released
		if cur, ok := c.store[key]; ok && c.now().After(cur.expires) {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return models.Discount{}, false
	}
	return e.discount, true
}

func (c *DiscountCache) Set(d models.Discount) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[d.Key()] = entry{discount: d, expires: c.now().Add(c.ttl)}
}

func (c *DiscountCache) Invalidate(codes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range codes {
		delete(c.store, models.NormalizeCode(code))
	}
}
