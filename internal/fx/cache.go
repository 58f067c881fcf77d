package fx

import (
	"context"
	"strings"
	"sync"
	"time"

	"spendy/internal/clock"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	rates     map[string]decimal.Decimal
	expiresAt time.Time
}

// Cache keeps rate tables per base currency for a fixed TTL. Concurrent
// misses for the same base share a single upstream call.
type Cache struct {
	source RateSource
	ttl    time.Duration
	clock  clock.Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

func NewCache(source RateSource, ttl time.Duration, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	base = normalizeCode(base)
	if rates, ok := c.lookup(base); ok {
		return rates, nil
	}
	// The shared fetch outlives any single caller; the provider timeout
	// bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(base, func() (any, error) {
		if rates, ok := c.lookup(base); ok {
			return rates, nil
		}
		rates, err := c.source.Rates(shared, base)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[base] = cacheEntry{rates: rates, expiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Unlock()
		return rates, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]decimal.Decimal), nil
	}
}

// Rate returns how many units of to one unit of from buys.
func (c *Cache) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = normalizeCode(from), normalizeCode(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	rates, err := c.Rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, ErrUnsupportedCurrency
	}
	return rate, nil
}

// Invalidate drops every cached table.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *Cache) lookup(base string) (map[string]decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[base]
	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.rates, true
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
