package rag

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// cacheKey derives a stable key from the query, the strategy, and the
// identity of every configured source, so a config change never serves
// stale results.
func cacheKey(query, strategy string, sources []Source) string {
	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.Identifier())
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(strategy))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	key       string
	results   []Result
	expiresAt time.Time
}

// queryCache is a TTL-bounded LRU for retrieval results. Entries expire
// lazily on read; the LRU bound evicts the least recently used entry
// when MaxEntries is exceeded.
type queryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func newQueryCache(ttl time.Duration, maxEntries int) *queryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &queryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *queryCache) Get(key string) ([]Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.results, true
}

func (c *queryCache) Set(key string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.results = results
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		results:   results,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = elem

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *queryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
