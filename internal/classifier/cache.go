package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// cache memoizes classifications keyed by a hash of the normalized
// text. Entries expire after the TTL; the LRU bound keeps the memo
// from growing without limit. Hits return an independent copy so a
// cached intent is never shared between requests.
type cache struct {
	lru    *expirable.LRU[string, *Intent]
	hits   atomic.Int64
	misses atomic.Int64
}

func newCache(size int, ttl time.Duration) *cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &cache{lru: expirable.NewLRU[string, *Intent](size, nil, ttl)}
}

func (c *cache) Get(text string) (*Intent, bool) {
	cached, ok := c.lru.Get(cacheKey(text))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return cached.clone(), true
}

func (c *cache) Put(text string, intent *Intent) {
	c.lru.Add(cacheKey(text), intent.clone())
}

func (c *cache) Purge() {
	c.lru.Purge()
}

func (c *cache) Len() int {
	return c.lru.Len()
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}
