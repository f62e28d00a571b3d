package proxy

import (
	"net/http"
	"sync"
	"time"
)

// upstreamPage is a fetched page before annotation. Annotation depends on
// the visitor, so only the raw upstream response is shared.
type upstreamPage struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

type cacheEntry struct {
	page    upstreamPage
	created time.Time
}

type pageCache struct {
	mu   sync.RWMutex
	now  func() time.Time
	ttl  time.Duration
	data map[string]cacheEntry
}

func newPageCache(now func() time.Time, ttl time.Duration) *pageCache {
	if now == nil {
		now = time.Now
	}
	return &pageCache{
		now:  now,
		ttl:  ttl,
		data: make(map[string]cacheEntry),
	}
}

// Store keeps successful pages for the cache TTL. A zero TTL disables
// caching.
func (c *pageCache) Store(target string, page *upstreamPage) {
	if c.ttl <= 0 || page == nil || page.Status != http.StatusOK || len(page.Body) == 0 {
		return
	}
	if cc := page.Header.Get("Cache-Control"); containsToken(cc, "no-store") || containsToken(cc, "private") {
		return
	}
	entry := cacheEntry{
		page: upstreamPage{
			URL:    page.URL,
			Status: page.Status,
			Header: page.Header.Clone(),
			Body:   append([]byte(nil), page.Body...),
		},
		created: c.now(),
	}
	c.mu.Lock()
	c.data[target] = entry
	c.mu.Unlock()
}

// Select returns a copy of a fresh page for target. Expired entries are
// dropped.
func (c *pageCache) Select(target string) (*upstreamPage, bool) {
	c.mu.RLock()
	entry, ok := c.data[target]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.created) >= c.ttl {
		c.mu.Lock()
		if cur, ok := c.data[target]; ok && cur.created.Equal(entry.created) {
			delete(c.data, target)
		}
		c.mu.Unlock()
		return nil, false
	}
	page := entry.page
	page.Header = page.Header.Clone()
	return &page, true
}

// Purge drops every expired entry and returns how many remain.
func (c *pageCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.data {
		if now.Sub(e.created) >= c.ttl {
			delete(c.data, k)
		}
	}
	return len(c.data)
}
