package bundler

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// cacheVersion invalidates older cache files wholesale. Entries never
// migrate across versions; the cache just rebuilds.
const cacheVersion = 1

// CacheEntry records one snippet's compile verdict so unchanged
// snippets skip recompilation on the next build.
type CacheEntry struct {
	Compiled       bool
	ID             string
	Event          string
	Code           string
	NeedsEvaluator bool
	Once           bool
	Prevent        bool
	Stop           bool
	Debounce       int
	Throttle       int

	// Reason says why the snippet fell back, for uncompiled entries.
	Reason string
}

type cacheFile struct {
	Version int
	Entries map[string]CacheEntry
}

// Cache is the on-disk compile cache, keyed by snippet hash. It is a
// pure accelerator: deleting the file is always safe.
type Cache struct {
	path    string
	entries map[string]CacheEntry
	hits    int
}

// LoadCache reads the cache at path. A missing, corrupt or
// version-mismatched file yields an empty cache, never an error.
func LoadCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var file cacheFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return c
	}
	if file.Version != cacheVersion || file.Entries == nil {
		return c
	}
	c.entries = file.Entries
	return c
}

// Get returns the entry for key, counting the hit.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	e, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return e, ok
}

// Put stores the entry for key.
func (c *Cache) Put(key string, e CacheEntry) {
	c.entries[key] = e
}

// Drop removes the entry for key.
func (c *Cache) Drop(key string) {
	delete(c.entries, key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

// Hits returns how many lookups were served from the cache.
func (c *Cache) Hits() int { return c.hits }

// Save writes the cache with deterministic CBOR encoding so repeated
// saves of the same state are byte-identical.
func (c *Cache) Save() error {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return fmt.Errorf("cache encoder: %w", err)
	}
	data, err := encMode.Marshal(cacheFile{Version: cacheVersion, Entries: c.entries})
	if err != nil {
		return fmt.Errorf("cache encoding: %w", err)
	}
	return os.WriteFile(c.path, data, 0o644)
}
