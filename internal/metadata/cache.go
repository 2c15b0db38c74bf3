package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"novatok-explorer/internal/domain"
)

// DefaultCacheTTL is how long fetched documents are kept.
const DefaultCacheTTL = 10 * time.Minute

// Cache keeps fetched metadata documents keyed by URL. Only successful
// fetches are cached; embedded URIs never reach it.
type Cache struct {
	bc *bigcache.BigCache
}

// NewCache creates a cache whose entries expire after ttl. Eviction
// runs until ctx is done or Close is called.
func NewCache(ctx context.Context, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.MaxEntrySize = 2048
	cfg.HardMaxCacheSize = 64 // MB
	cfg.CleanWindow = ttl / 2
	cfg.Verbose = false

	bc, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}
	return &Cache{bc: bc}, nil
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	return c.bc.Len()
}

// Close stops eviction and releases the cache.
func (c *Cache) Close() error {
	return c.bc.Close()
}

func (c *Cache) get(url string) (*domain.TokenMetadata, bool) {
	data, err := c.bc.Get(url)
	if err != nil {
		return nil, false
	}
	var m domain.TokenMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (c *Cache) set(url string, m *domain.TokenMetadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal cached metadata: %w", err)
	}
	if err := c.bc.Set(url, data); err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil
		}
		return fmt.Errorf("cache metadata: %w", err)
	}
	return nil
}
