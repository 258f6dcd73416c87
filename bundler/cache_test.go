package bundler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")

	c := LoadCache(path)
	require.Equal(t, 0, c.Len())

	compiled := CacheEntry{
		Compiled: true,
		ID:       "hf_click_toggle_0a1b2c3d",
		Event:    "click",
		Code:     "function hf_click_toggle_0a1b2c3d(event) {}",
		Prevent:  true,
		Debounce: 300,
	}
	fallback := CacheEntry{Reason: "block statement needs the runtime"}
	c.Put("0a1b2c3d", compiled)
	c.Put("deadbeef", fallback)
	require.NoError(t, c.Save())

	reloaded := LoadCache(path)
	require.Equal(t, 2, reloaded.Len())

	got, ok := reloaded.Get("0a1b2c3d")
	require.True(t, ok)
	if diff := cmp.Diff(compiled, got); diff != "" {
		t.Errorf("compiled entry mismatch (-want +got):\n%s", diff)
	}

	got, ok = reloaded.Get("deadbeef")
	require.True(t, ok)
	require.False(t, got.Compiled)
	require.Equal(t, "block statement needs the runtime", got.Reason)
	require.Equal(t, 2, reloaded.Hits())
}

func TestCacheMissDoesNotCountAsHit(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "cache"))
	_, ok := c.Get("missing")
	require.False(t, ok)
	require.Equal(t, 0, c.Hits())
}

func TestCacheDrop(t *testing.T) {
	c := LoadCache(filepath.Join(t.TempDir(), "cache"))
	c.Put("k", CacheEntry{Reason: "parse error: x"})
	c.Drop("k")
	require.Equal(t, 0, c.Len())
}

func TestLoadCacheDiscardsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	stale, err := cbor.Marshal(cacheFile{
		Version: cacheVersion + 1,
		Entries: map[string]CacheEntry{"k": {Compiled: true, ID: "old"}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, stale, 0o644))

	c := LoadCache(path)
	require.Equal(t, 0, c.Len())
}

func TestLoadCacheToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(path, []byte("not cbor at all"), 0o644))

	c := LoadCache(path)
	require.Equal(t, 0, c.Len())
}

func TestCacheSaveIsDeterministic(t *testing.T) {
	dir := t.TempDir()

	save := func(name string) []byte {
		c := LoadCache(filepath.Join(dir, name))
		c.Put("bbbb", CacheEntry{Reason: "parse error: y"})
		c.Put("aaaa", CacheEntry{Compiled: true, ID: "hf_load_show_aaaa", Event: "load"})
		require.NoError(t, c.Save())
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return data
	}

	require.Equal(t, save("one"), save("two"))
}
