package fetch

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of responses a Cache keeps.
const DefaultCacheSize = 256

// Cache is a bounded, concurrency-safe Fetcher wrapper. Concurrent requests for the same URL share
// one underlying fetch. Failed fetches are not cached.
type Cache struct {
	fetcher Fetcher
	logger  *slog.Logger
	entries *lru.Cache[string, []byte]
	group   singleflight.Group
}

// NewCache wraps f. A size <= 0 means DefaultCacheSize; a nil logger means slog.Default().
func NewCache(f Fetcher, size int, logger *slog.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("fetch cache: %w", err)
	}
	return &Cache{fetcher: f, logger: logger, entries: entries}, nil
}

// Fetch implements Fetcher. The returned slice is shared and must not be modified.
func (c *Cache) Fetch(ctx context.Context, url string) ([]byte, error) {
	if data, ok := c.entries.Get(url); ok {
		c.logger.Debug("fetch cache hit", "url", url)
		return data, nil
	}

	// The shared fetch must outlive any single caller giving up
	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(url, func() (any, error) {
		data, err := c.fetcher.Fetch(fctx, url)
		if err != nil {
			return nil, err
		}
		c.entries.Add(url, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("fetch shared with a concurrent request", "url", url)
		}
		return res.Val.([]byte), nil
	}
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	return c.entries.Len()
}
