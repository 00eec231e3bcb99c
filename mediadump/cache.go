package mediadump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const cacheKeyPrefix = "strapi-media-"

// CacheKey is the key under which we remember the download of Strapi file fileID.
func CacheKey(fileID string) string {
	return cacheKeyPrefix + fileID
}

// CacheEntry remembers which file node a Strapi file was downloaded into, and which revision of
// the file that was.
type CacheEntry struct {
	FileNodeID string `yaml:"fileNodeID" json:"fileNodeID"`
	UpdatedAt  string `yaml:"updatedAt" json:"updatedAt"`
}

// Cache is a key-value store that survives between runs.  Implementations must be safe for
// concurrent use; concurrent writes to one key may resolve either way.
type Cache interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry) error
}

// MemoryCache forgets everything when the process exits.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]CacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

// FileCache keeps entries in a YAML file.  Writes stay in memory until Flush.
type FileCache struct {
	path string

	mu      sync.RWMutex
	entries map[string]CacheEntry
	dirty   bool
}

// OpenFileCache loads the cache at path.  A missing file is an empty cache, e.g. on a first run.
func OpenFileCache(path string) (*FileCache, error) {
	c := &FileCache{
		path:    path,
		entries: make(map[string]CacheEntry),
	}

	source, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mediadump: couldn't read cache %s: %w", path, err)
	}

	if err := yaml.Unmarshal(source, &c.entries); err != nil {
		return nil, fmt.Errorf("mediadump: couldn't parse cache %s: %w", path, err)
	}
	if c.entries == nil {
		c.entries = make(map[string]CacheEntry)
	}

	return c, nil
}

func (c *FileCache) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok, nil
}

func (c *FileCache) Set(_ context.Context, key string, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	c.dirty = true
	return nil
}

func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush writes the cache back to disk if anything changed.
func (c *FileCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	out, err := yaml.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("mediadump: couldn't marshal cache: %w", err)
	}

	if err := writeFileAtomic(c.path, out); err != nil {
		return fmt.Errorf("mediadump: couldn't write cache: %w", err)
	}

	c.dirty = false
	return nil
}

// writeFileAtomic replaces path with data via a temporary file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("mediadump: couldn't create directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("mediadump: couldn't create temp file in %s: %w", dir, err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("mediadump: couldn't write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("mediadump: couldn't close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("mediadump: couldn't move %s into place: %w", tmp, err)
	}

	return nil
}
