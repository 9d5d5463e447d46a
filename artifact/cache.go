package artifact

import (
	"context"
	"sync"

	"github.com/ezoic/medscore/pkg/log"
)

// Loader loads an artifact from a resolved path.
type Loader interface {
	Load(ctx context.Context, path string) (*Artifact, error)
}

// Cache holds loaded artifacts keyed by resolved path. Entries are never
// evicted or replaced; a new version resolves to a new path.
type Cache struct {
	loader Loader

	mu      sync.RWMutex
	entries map[string]*Artifact
	logger  log.Logger
}

// NewCache creates an empty cache over loader.
func NewCache(loader Loader) *Cache {
	return &Cache{
		loader:  loader,
		entries: make(map[string]*Artifact),
		logger:  log.GetLoggerWithName("artifact.cache"),
	}
}

// Get returns the cached artifact of path, loading it on first use.
// Concurrent first loads of one path may both read the file; the first to
// finish wins.
func (c *Cache) Get(ctx context.Context, path string) (*Artifact, error) {
	c.mu.RLock()
	a, ok := c.entries[path]
	c.mu.RUnlock()
	if ok {
		return a, nil
	}

	loaded, err := c.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.entries[path]; ok {
		return a, nil
	}
	c.entries[path] = loaded
	c.logger.Debug("artifact cached", log.ArtifactPathKey, path, log.ModelNameKey, loaded.Name)
	return loaded, nil
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
