package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outagecli/pkg/contracts/domain"
)

func TestWorkbookCacheLifecycle(t *testing.T) {
	cache := NewWorkbookCache(time.Hour, 10)
	defer cache.Stop()

	key := Key{Path: "book.xlsx", Digest: "abc"}
	ds := &domain.Dataset{Source: "book.xlsx"}

	_, found := cache.Get(key)
	assert.False(t, found)

	cache.Set(key, ds)
	got, found := cache.Get(key)
	require.True(t, found)
	assert.Same(t, ds, got)

	stats := cache.GetStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 0.5, stats.HitRatio)

	cache.Invalidate(key)
	_, found = cache.Get(key)
	assert.False(t, found)
}

func TestWorkbookCacheExpiry(t *testing.T) {
	cache := NewWorkbookCache(time.Minute, 10)
	defer cache.Stop()

	now := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	key := Key{Path: "a", Digest: "1"}
	cache.Set(key, &domain.Dataset{})
	_, found := cache.Get(key)
	assert.True(t, found)

	now = now.Add(2 * time.Minute)
	_, found = cache.Get(key)
	assert.False(t, found)

	cache.purgeExpired()
	assert.Equal(t, 0, cache.GetStats().Entries)
}

func TestWorkbookCacheZeroTTLNeverExpires(t *testing.T) {
	cache := NewWorkbookCache(0, 1)
	defer cache.Stop()

	now := time.Now()
	cache.now = func() time.Time { return now }
	key := Key{Path: "a", Digest: "1"}
	cache.Set(key, &domain.Dataset{})

	now = now.Add(365 * 24 * time.Hour)
	_, found := cache.Get(key)
	assert.True(t, found)
}

func TestWorkbookCacheEviction(t *testing.T) {
	cache := NewWorkbookCache(time.Hour, 2)
	defer cache.Stop()

	base := time.Now()
	step := 0
	cache.now = func() time.Time { step++; return base.Add(time.Duration(step) * time.Second) }

	cache.Set(Key{Path: "a", Digest: "1"}, &domain.Dataset{})
	cache.Set(Key{Path: "b", Digest: "1"}, &domain.Dataset{})
	cache.Set(Key{Path: "c", Digest: "1"}, &domain.Dataset{})

	assert.Equal(t, 2, cache.GetStats().Entries)
	_, found := cache.Get(Key{Path: "a", Digest: "1"})
	assert.False(t, found)
	_, found = cache.Get(Key{Path: "c", Digest: "1"})
	assert.True(t, found)
}

func TestWorkbookCacheReplacesStaleDigest(t *testing.T) {
	cache := NewWorkbookCache(time.Hour, 10)
	defer cache.Stop()

	cache.Set(Key{Path: "a", Digest: "old"}, &domain.Dataset{})
	cache.Set(Key{Path: "a", Digest: "new"}, &domain.Dataset{})

	assert.Equal(t, 1, cache.GetStats().Entries)
	assert.Equal(t, 1, cache.InvalidatePath("a"))
	assert.Equal(t, 0, cache.GetStats().Entries)
}

func TestWorkbookCacheZeroSize(t *testing.T) {
	cache := NewWorkbookCache(time.Hour, 0)
	defer cache.Stop()

	key := Key{Path: "a", Digest: "1"}
	cache.Set(key, &domain.Dataset{})
	_, found := cache.Get(key)
	assert.False(t, found)
}

func TestWorkbookCacheConcurrentAccess(t *testing.T) {
	cache := NewWorkbookCache(time.Hour, 50)
	defer cache.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key{Path: fmt.Sprintf("book-%d", i%5), Digest: "d"}
			cache.Set(key, &domain.Dataset{})
			cache.Get(key)
			cache.GetStats()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, cache.GetStats().Entries)
	cache.Clear()
	assert.Equal(t, 0, cache.GetStats().Entries)
	cache.Stop()
}

func TestKeyForFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))

	k1, err := KeyForFile(path)
	require.NoError(t, err)
	k1again, err := KeyForFile(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k1again)

	require.NoError(t, os.WriteFile(path, []byte("two"), 0644))
	k2, err := KeyForFile(path)
	require.NoError(t, err)
	assert.Equal(t, k1.Path, k2.Path)
	assert.NotEqual(t, k1.Digest, k2.Digest)

	_, err = KeyForFile(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
