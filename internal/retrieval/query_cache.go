package retrieval

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/verisum/internal/model"
)

// DefaultQueryTTL is how long a retrieval result is reused for the same question
const DefaultQueryTTL = 30 * time.Minute

type queryEntry struct {
	result   model.RetrievalResult
	cachedAt time.Time
}

// QueryCache maps normalized questions to retrieval results.
// It is never invalidated by document rebuilds: a result can outlive the
// index it came from until its own TTL passes.
type QueryCache struct {
	entries *gocache.Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewQueryCache creates a query cache
func NewQueryCache(ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultQueryTTL
	}
	return &QueryCache{
		entries: gocache.New(ttl, 2*ttl),
		ttl:     ttl,
		now:     time.Now,
	}
}

// NormalizeQuery lowercases and trims a question
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Get returns the cached result for query if it has not expired
func (c *QueryCache) Get(query string) (model.RetrievalResult, bool) {
	val, ok := c.entries.Get(NormalizeQuery(query))
	if !ok {
		return model.RetrievalResult{}, false
	}
	entry := val.(queryEntry)
	if c.now().Sub(entry.cachedAt) >= c.ttl {
		return model.RetrievalResult{}, false
	}
	return entry.result, true
}

// Put stores a result under the normalized query
func (c *QueryCache) Put(query string, result model.RetrievalResult) {
	c.entries.Set(NormalizeQuery(query), queryEntry{result: result, cachedAt: c.now()}, gocache.DefaultExpiration)
}

// Len returns the number of cached queries
func (c *QueryCache) Len() int {
	return c.entries.ItemCount()
}

// Clear drops every cached result
func (c *QueryCache) Clear() {
	c.entries.Flush()
}
