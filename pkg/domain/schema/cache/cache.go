// Package cache keeps compiled schema documents, one per platform minor
// version.
//
// Entries are immutable once stored. Unknown versions degrade to the
// closest embedded document instead of blocking the caller; a fetch for
// the exact version runs in the background.
package cache

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/cloudpasture/shepherd/pkg/domain/schema"
	"github.com/cloudpasture/shepherd/pkg/utils/retry"
)

//go:embed embedded/*.json
var embedded embed.FS

// Fetcher retrieves the schema document for a minor version from outside,
// typically the platform's schema endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, minorVersion string) ([]byte, error)
}

type FetchFunc func(ctx context.Context, minorVersion string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, minorVersion string) ([]byte, error) {
	return f(ctx, minorVersion)
}

type entry struct {
	schema schema.Schema
	source schema.Source
}

// Cache is an injected service, not a global. Create one per process and
// pass it down.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	fetcher        Fetcher
	logger         *log.Logger
	attemptTimeout time.Duration
	newBackoff     func() retry.Backoff

	// called after a fetched schema replaces a fallback
	onChange func(minorVersion string)
}

type Option func(*Cache) *Cache

func WithLogger(l *log.Logger) Option {
	return func(c *Cache) *Cache {
		c.logger = l
		return c
	}
}

// WithAttemptTimeout bounds each single fetch attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Cache) *Cache {
		c.attemptTimeout = d
		return c
	}
}

// WithBackoff replaces the default refresh retry policy.
func WithBackoff(newBackoff func() retry.Backoff) Option {
	return func(c *Cache) *Cache {
		c.newBackoff = newBackoff
		return c
	}
}

// WithOnChange registers a hook fired when a version's schema changes from
// fallback to its real document.
func WithOnChange(hook func(minorVersion string)) Option {
	return func(c *Cache) *Cache {
		c.onChange = hook
		return c
	}
}

func New(fetcher Fetcher, options ...Option) (*Cache, error) {
	c := &Cache{
		entries:        map[string]entry{},
		fetcher:        fetcher,
		logger:         log.Default(),
		attemptTimeout: 10 * time.Second,
		newBackoff: func() retry.Backoff {
			return retry.UpTo(5, retry.ExponentialBackoff(1*time.Second, 2))
		},
	}
	for _, o := range options {
		c = o(c)
	}

	if err := c.loadEmbedded(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) loadEmbedded() error {
	return fs.WalkDir(embedded, "embedded", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		document, err := embedded.ReadFile(path)
		if err != nil {
			return err
		}
		s, err := schema.Parse(document)
		if err != nil {
			return fmt.Errorf("embedded schema %s: %w", path, err)
		}
		c.entries[schema.MinorVersion(s.Version)] = entry{
			schema: s, source: schema.SourceEmbedded,
		}
		return nil
	})
}

// Get returns the schema for version, degrading gracefully.
//
// Exact minor-version hits are returned as they are. A miss picks the
// closest embedded version as a stand-in, kicks a background fetch for the
// real one, and reports SourceFallback. With nothing to stand in,
// schema.ErrNoFallback. Get never blocks on the network.
func (c *Cache) Get(ctx context.Context, version string) (schema.Schema, schema.Source, error) {
	minor := schema.MinorVersion(version)

	c.mu.RLock()
	e, ok := c.entries[minor]
	c.mu.RUnlock()
	if ok {
		return e.schema, e.source, nil
	}

	fallback, ok := c.closestEmbedded(minor)
	if !ok {
		return schema.Schema{}, "", fmt.Errorf("%w: %s", schema.ErrNoFallback, version)
	}

	c.mu.Lock()
	// lost the race? someone else may have stored it meanwhile.
	if e, ok := c.entries[minor]; ok {
		c.mu.Unlock()
		return e.schema, e.source, nil
	}
	c.entries[minor] = entry{schema: fallback, source: schema.SourceFallback}
	c.mu.Unlock()

	c.logger.Printf(
		"schema cache: no document for version %s, serving %s as fallback",
		minor, fallback.Version,
	)
	go func() {
		if err := c.Refresh(context.Background(), minor); err != nil {
			c.logger.Printf("schema cache: background refresh for %s failed: %s", minor, err)
		}
	}()

	return fallback, schema.SourceFallback, nil
}

// Refresh fetches the document for minorVersion and stores it.
//
// Attempts are bounded and backed off; on exhaustion the current entry
// (fallback or older fetch) stays in place.
func (c *Cache) Refresh(ctx context.Context, minorVersion string) error {
	fetched, err := retry.Blocking(ctx, c.newBackoff(), func() (schema.Schema, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()

		document, err := c.fetcher.Fetch(attemptCtx, minorVersion)
		if err != nil {
			return schema.Schema{}, fmt.Errorf("%w: %s", retry.ErrRetry, err)
		}
		s, err := schema.Parse(document)
		if err != nil {
			// a broken document will not get better by retrying
			return schema.Schema{}, err
		}
		return s, nil
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	previous, had := c.entries[minorVersion]
	c.entries[minorVersion] = entry{schema: fetched, source: schema.SourceFetched}
	c.mu.Unlock()

	if c.onChange != nil && (!had || previous.source == schema.SourceFallback) {
		c.onChange(minorVersion)
	}
	return nil
}

// Latest returns the newest schema known to the cache.
//
// Used when no target cluster is decided yet and so no platform version
// can pin the schema.
func (c *Cache) Latest() (schema.Schema, schema.Source) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := ""
	for version := range c.entries {
		if best == "" || schema.VersionLess(best, version) {
			best = version
		}
	}
	e := c.entries[best]
	return e.schema, e.source
}

// closestEmbedded picks the embedded version nearest to minor, preferring
// the newest one not beyond it.
func (c *Cache) closestEmbedded(minor string) (schema.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	candidates := []string{}
	for version, e := range c.entries {
		if e.source == schema.SourceEmbedded {
			candidates = append(candidates, version)
		}
	}
	if len(candidates) == 0 {
		return schema.Schema{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return schema.VersionLess(candidates[i], candidates[j])
	})

	chosen := candidates[0]
	for _, candidate := range candidates {
		if schema.VersionLess(minor, candidate) {
			break
		}
		chosen = candidate
	}
	return c.entries[chosen].schema, true
}
