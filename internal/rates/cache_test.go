package rates

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	price decimal.Decimal
	err   error
	calls int32
}

func (f *fakeSource) FetchSpotPrice(_ context.Context) (decimal.Decimal, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.price, nil
}

func TestCache_DerivesMarkedUpQuote(t *testing.T) {
	source := &fakeSource{price: decimal.NewFromInt(6500)}
	cache := NewCache(source, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.03), time.Minute)

	q := cache.GetRates(context.Background())

	// buy = 6500 * 1.02 * 1.03, sell = 6500 * 0.98
	assert.Equal(t, "6828.9", q.BuyPrice.String())
	assert.Equal(t, "6370", q.SellPrice.String())
	assert.Equal(t, "6500", q.SpotPrice.String())
	assert.Equal(t, SourceLive, q.Source)
}

func TestCache_ServesCachedQuoteWithinWindow(t *testing.T) {
	source := &fakeSource{price: decimal.NewFromInt(6500)}
	cache := NewCache(source, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.03), time.Minute)

	first := cache.GetRates(context.Background())
	second := cache.GetRates(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
}

func TestCache_RefetchesAfterExpiry(t *testing.T) {
	source := &fakeSource{price: decimal.NewFromInt(6500)}
	cache := NewCache(source, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.03), time.Minute)

	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.GetRates(context.Background())

	source.price = decimal.NewFromInt(6600)
	current = current.Add(61 * time.Second)

	q := cache.GetRates(context.Background())
	assert.Equal(t, "6600", q.SpotPrice.String())
	assert.Equal(t, int32(2), atomic.LoadInt32(&source.calls))
}

func TestCache_FallbackOnFeedFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("feed down")}
	cache := NewCache(source, decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.03), time.Minute)

	q := cache.GetRates(context.Background())

	assert.Equal(t, SourceFallback, q.Source)
	assert.Equal(t, "6500.5", q.BuyPrice.String())
	assert.Equal(t, "6200", q.SellPrice.String())

	// The fallback is never cached, so the feed is retried next time.
	source.err = nil
	source.price = decimal.NewFromInt(6500)
	q = cache.GetRates(context.Background())
	assert.Equal(t, SourceLive, q.Source)
}
