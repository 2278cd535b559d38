package git

import (
	"errors"
	"io"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// Opener constructs a Provider for a directory and label.
type Opener func(dir, label string, logger *log.Logger) *Provider

type cacheKey struct {
	dir   string
	label string
}

type cacheEntry struct {
	once     sync.Once
	provider *Provider
}

// Cache hands out one Provider per (directory, label) for the lifetime of a
// build invocation. Concurrent first access to the same key constructs the
// Provider once; other callers block until it is ready. An absent repository
// is cached like any other result and discovery is not retried.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	open    Opener
	logger  *log.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithOpener replaces the function used to open repositories.
func WithOpener(open Opener) CacheOption {
	return func(c *Cache) { c.open = open }
}

// WithCacheLogger sets the logger handed to opened providers.
func WithCacheLogger(logger *log.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// NewCache creates an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[cacheKey]*cacheEntry),
		open:    Open,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Get returns the Provider for dir and label, opening it on first use.
func (c *Cache) Get(dir, label string) *Provider {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	key := cacheKey{dir: dir, label: label}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.provider = c.open(dir, label, c.logger)
	})
	return entry.provider
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close releases every opened repository and empties the cache.
func (c *Cache) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[cacheKey]*cacheEntry)
	c.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if entry.provider != nil {
			if err := entry.provider.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
