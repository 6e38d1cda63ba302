package rates

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// Quote is the marked-up price pair derived from one spot fetch.
type Quote struct {
	BuyPrice  decimal.Decimal `json:"buyPrice"`
	SellPrice decimal.Decimal `json:"sellPrice"`
	SpotPrice decimal.Decimal `json:"spotPrice"`
	GST       decimal.Decimal `json:"gst"`
	Source    string          `json:"source"` // "live" or "fallback"
}

// fallbackQuote is served whenever the feed is unavailable. Traders are
// never blocked by a feed outage; consumers can tell a degraded quote by
// its Source field.
var fallbackQuote = Quote{
	BuyPrice:  decimal.NewFromFloat(6500.50),
	SellPrice: decimal.NewFromFloat(6200.00),
	SpotPrice: decimal.NewFromFloat(6300.00),
	GST:       decimal.NewFromFloat(0.03),
	Source:    SourceFallback,
}

// Cache is a single-slot cache over the spot feed. There is exactly one
// instrument, so a cache miss overwrites the slot; concurrent misses share
// one upstream fetch through singleflight.
type Cache struct {
	source Source
	margin decimal.Decimal
	gst    decimal.Decimal
	ttl    time.Duration

	mu        sync.RWMutex
	cached    *Quote
	fetchedAt time.Time

	group singleflight.Group
	now   func() time.Time
}

func NewCache(source Source, margin, gst decimal.Decimal, ttl time.Duration) *Cache {
	return &Cache{
		source: source,
		margin: margin,
		gst:    gst,
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetRates returns the cached quote when it is younger than the freshness
// window, otherwise refreshes from the feed. A feed failure yields the
// static fallback quote, never an error.
func (c *Cache) GetRates(ctx context.Context) Quote {
	if q, ok := c.fresh(); ok {
		return q
	}

	v, _, _ := c.group.Do("spot", func() (any, error) {
		// A waiter may arrive just after the leader stored a fresh
		// quote; do not refetch in that case.
		if q, ok := c.fresh(); ok {
			return q, nil
		}

		spot, err := c.source.FetchSpotPrice(ctx)
		if err != nil {
			log.Printf("[RATES] Spot fetch failed, serving fallback quote: %v", err)
			return fallbackQuote, nil
		}

		q := c.derive(spot)
		c.mu.Lock()
		c.cached = &q
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return q, nil
	})

	return v.(Quote)
}

func (c *Cache) fresh() (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return *c.cached, true
	}
	return Quote{}, false
}

func (c *Cache) derive(spot decimal.Decimal) Quote {
	one := decimal.NewFromInt(1)
	buy := spot.Mul(one.Add(c.margin)).Mul(one.Add(c.gst))
	sell := spot.Mul(one.Sub(c.margin))

	return Quote{
		BuyPrice:  buy.Round(2),
		SellPrice: sell.Round(2),
		SpotPrice: spot.Round(2),
		GST:       c.gst,
		Source:    SourceLive,
	}
}
