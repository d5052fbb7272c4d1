package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"outagecli/pkg/contracts/domain"
)

// Key identifies a loaded workbook by path and content digest. A changed
// file produces a new digest and therefore a miss.
type Key struct {
	Path   string
	Digest string
}

// KeyForFile hashes the content of path.
func KeyForFile(path string) (Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return Key{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Key{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return Key{Path: path, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// Entry represents a cached dataset
type Entry struct {
	Dataset   *domain.Dataset `json:"-"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	HitCount  int             `json:"hit_count"`
}

// Stats summarizes cache usage.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxSize    int     `json:"max_size"`
	HitCount   int64   `json:"hit_count"`
	MissCount  int64   `json:"miss_count"`
	HitRatio   float64 `json:"hit_ratio"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// WorkbookCache is a read-through cache of loaded datasets. It is safe for
// concurrent use. A TTL of zero disables expiry.
type WorkbookCache struct {
	entries   map[Key]Entry
	mutex     sync.RWMutex
	ttl       time.Duration
	maxSize   int
	hitCount  int64
	missCount int64
	stopChan  chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

// NewWorkbookCache creates a new workbook cache
func NewWorkbookCache(ttl time.Duration, maxSize int) *WorkbookCache {
	cache := &WorkbookCache{
		entries:  make(map[Key]Entry),
		ttl:      ttl,
		maxSize:  maxSize,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}

	go cache.cleanup()

	return cache
}

// Get retrieves a dataset from cache
func (c *WorkbookCache) Get(key Key) (*domain.Dataset, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.expired(entry) {
		c.missCount++
		return nil, false
	}

	entry.HitCount++
	c.entries[key] = entry
	c.hitCount++

	return entry.Dataset, true
}

// Set stores a dataset in cache
func (c *WorkbookCache) Set(key Key, dataset *domain.Dataset) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.maxSize <= 0 {
		return
	}

	// Stale digests of the same path are never read again.
	for k := range c.entries {
		if k.Path == key.Path && k.Digest != key.Digest {
			delete(c.entries, k)
		}
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	entry := Entry{Dataset: dataset, CachedAt: now}
	if c.ttl > 0 {
		entry.ExpiresAt = now.Add(c.ttl)
	}
	c.entries[key] = entry
}

// Invalidate removes one entry
func (c *WorkbookCache) Invalidate(key Key) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, key)
}

// InvalidatePath removes every entry loaded from path and returns how many.
func (c *WorkbookCache) InvalidatePath(path string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := 0
	for k := range c.entries {
		if k.Path == path {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (c *WorkbookCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[Key]Entry)
}

// GetStats returns cache statistics
func (c *WorkbookCache) GetStats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	totalRequests := c.hitCount + c.missCount
	hitRatio := float64(0)
	if totalRequests > 0 {
		hitRatio = float64(c.hitCount) / float64(totalRequests)
	}

	return Stats{
		Entries:    len(c.entries),
		MaxSize:    c.maxSize,
		HitCount:   c.hitCount,
		MissCount:  c.missCount,
		HitRatio:   hitRatio,
		TTLSeconds: c.ttl.Seconds(),
	}
}

func (c *WorkbookCache) expired(entry Entry) bool {
	return !entry.ExpiresAt.IsZero() && c.now().After(entry.ExpiresAt)
}

func (c *WorkbookCache) evictOldest() {
	var oldestKey Key
	var oldestTime time.Time
	found := false

	for key, entry := range c.entries {
		if !found || entry.CachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CachedAt
			found = true
		}
	}

	if found {
		delete(c.entries, oldestKey)
	}
}

// Stop gracefully stops the cache cleanup goroutine. It is safe to call twice.
func (c *WorkbookCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *WorkbookCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *WorkbookCache) purgeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
		}
	}
}
