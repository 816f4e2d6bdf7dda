package analysis

import (
	"sync"

	"github.com/htmllex/analyzer/internal/models"
	"github.com/zeebo/xxh3"
)

// cacheKey identifies a (content, ruleset) pair.
type cacheKey struct {
	content xxh3.Uint128
	rules   uint64
}

type cacheEntry struct {
	tokens []models.Token
	errors []string
}

// Cache holds analysis outcomes keyed by content hash. Entries are evicted
// oldest-first once capacity is reached. A capacity of zero disables it.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]cacheEntry
	order    []cacheKey
	hits     int
	misses   int
}

// NewCache creates a cache holding at most capacity results.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[cacheKey]cacheEntry),
	}
}

func keyFor(content []byte, rulesFingerprint uint64) cacheKey {
	return cacheKey{content: xxh3.Hash128(content), rules: rulesFingerprint}
}

// Get returns a copy of the cached result relabeled with filePath.
func (c *Cache) Get(key cacheKey, filePath string) (*models.AnalysisResult, bool) {
	if c == nil || c.capacity <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++

	result := models.NewAnalysisResult(filePath)
	result.Tokens = append(result.Tokens, e.tokens...)
	result.Errors = append(result.Errors, e.errors...)
	return result, true
}

// Put stores a copy of result under key.
func (c *Cache) Put(key cacheKey, result *models.AnalysisResult) {
	if c == nil || c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = cacheEntry{
		tokens: append([]models.Token(nil), result.Tokens...),
		errors: append([]string(nil), result.Errors...),
	}
	c.order = append(c.order, key)
}

// Stats returns hit and miss counts and the current size.
func (c *Cache) Stats() (hits, misses, size int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}
