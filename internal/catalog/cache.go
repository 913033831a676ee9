package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Source lists the metal symbols known to an external catalog.
type Source interface {
	Symbols(ctx context.Context) ([]string, error)
}

type snapshot struct {
	symbols   []string
	fetchedAt time.Time
}

// Cache holds the symbol list for a bounded time. Readers never block;
// concurrent refreshes may race and the last one wins.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	state  atomic.Pointer[snapshot]
	logger zerolog.Logger
}

// NewCache builds an empty cache. now defaults to time.Now.
func NewCache(source Source, ttl time.Duration, now func() time.Time, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		source: source,
		ttl:    ttl,
		now:    now,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Get returns the cached symbols, stale or not. It is nil before the first
// successful refresh.
func (c *Cache) Get() []string {
	snap := c.state.Load()
	if snap == nil {
		return nil
	}
	return snap.symbols
}

// Stale reports whether the cache is empty or older than its TTL.
func (c *Cache) Stale() bool {
	snap := c.state.Load()
	return snap == nil || c.now().Sub(snap.fetchedAt) >= c.ttl
}

// RefreshIfStale reloads the symbols when the TTL has expired. A failed
// reload keeps the previous symbols and returns them with the error.
func (c *Cache) RefreshIfStale(ctx context.Context) ([]string, error) {
	if !c.Stale() {
		return c.Get(), nil
	}

	symbols, err := c.source.Symbols(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("symbol refresh failed; keeping previous list")
		return c.Get(), fmt.Errorf("refresh symbols: %w", err)
	}

	symbols = normalize(symbols)
	c.state.Store(&snapshot{symbols: symbols, fetchedAt: c.now()})
	c.logger.Debug().Int("symbols", len(symbols)).Msg("symbol catalog refreshed")
	return symbols, nil
}

func normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
