package decompile

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	m "hydra.dev/pkg/hydra/internal/model"
)

// Cache stores decompilations keyed by bytecode fingerprint. Entries are
// bounded in number and never served once older than the TTL, measured on
// the injected clock.
type Cache struct {
	entries *expirable.LRU[string, m.CacheEntry]
	ttl     time.Duration
	clock   Clock
	metrics *Metrics
}

// NewCache builds an empty cache.
func NewCache(size int, ttl time.Duration, clock Clock, metrics *Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if clock == nil {
		clock = SystemClock{}
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Cache{
		entries: expirable.NewLRU[string, m.CacheEntry](size, nil, ttl),
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

const (
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupExpired = "expired"
	lookupCorrupt = "corrupt"
)

// Get returns the entry for fingerprint when it is fresh and intact. Expired
// and corrupted entries are evicted and reported as a miss.
func (c *Cache) Get(fingerprint string) (m.CacheEntry, bool) {
	entry, result := c.lookup(fingerprint)
	c.metrics.CacheLookups.WithLabelValues(result).Inc()

	return entry, result == lookupHit
}

// peek is Get without recording the lookup.
func (c *Cache) peek(fingerprint string) (m.CacheEntry, bool) {
	entry, result := c.lookup(fingerprint)
	return entry, result == lookupHit
}

func (c *Cache) lookup(fingerprint string) (m.CacheEntry, string) {
	entry, ok := c.entries.Get(fingerprint)
	if !ok {
		return m.CacheEntry{}, lookupMiss
	}

	if age := c.clock.Now().Sub(entry.CreatedAt); age >= c.ttl {
		c.entries.Remove(fingerprint)
		slog.Debug("Cache entry expired", "fingerprint", fingerprint, "age", age)

		return m.CacheEntry{}, lookupExpired
	}

	if err := verify(fingerprint, entry); err != nil {
		c.entries.Remove(fingerprint)
		slog.Warn("Dropping corrupted cache entry", "fingerprint", fingerprint, "error", err)

		return m.CacheEntry{}, lookupCorrupt
	}

	return entry, lookupHit
}

// Put stores a decompilation and returns the entry as written.
func (c *Cache) Put(fingerprint string, decompilation m.Decompilation) (m.CacheEntry, error) {
	sum, err := checksum(decompilation)
	if err != nil {
		return m.CacheEntry{}, err
	}

	entry := m.CacheEntry{
		Fingerprint:   fingerprint,
		Decompilation: decompilation,
		Confidence:    decompilation.Confidence,
		CreatedAt:     c.clock.Now(),
		Checksum:      sum,
	}

	c.entries.Add(fingerprint, entry)

	return entry, nil
}

// Len is the number of stored entries, including ones not yet evicted.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func verify(fingerprint string, entry m.CacheEntry) error {
	if entry.Fingerprint != fingerprint {
		return fmt.Errorf("%w: stored under %s, claims %s", ErrCacheCorruption, fingerprint, entry.Fingerprint)
	}

	sum, err := checksum(entry.Decompilation)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheCorruption, err)
	}

	if sum != entry.Checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrCacheCorruption)
	}

	return nil
}
