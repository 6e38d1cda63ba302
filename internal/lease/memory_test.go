package lease

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_CreateAndConsume(t *testing.T) {
	store := NewMemoryStore(DefaultValidity)
	ctx := context.Background()

	lock, err := store.Create(ctx, 7, decimal.NewFromInt(5000), decimal.NewFromFloat(6700))
	assert.NoError(t, err)
	assert.NotEmpty(t, lock.ID)
	assert.Equal(t, int64(7), lock.UserID)
	assert.True(t, lock.Grams.Equal(decimal.NewFromFloat(0.7463)))

	consumed, err := store.Consume(ctx, lock.ID)
	assert.NoError(t, err)
	assert.True(t, consumed.AmountINR.Equal(decimal.NewFromInt(5000)))

	_, err = store.Consume(ctx, lock.ID)
	assert.ErrorIs(t, err, ErrAlreadyConsumed)
}

func TestMemoryStore_UnknownLock(t *testing.T) {
	store := NewMemoryStore(DefaultValidity)

	_, err := store.Consume(context.Background(), "no-such-lock")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(DefaultValidity)
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	lock, err := store.Create(ctx, 7, decimal.NewFromInt(5000), decimal.NewFromFloat(6700))
	assert.NoError(t, err)

	current = current.Add(DefaultValidity + time.Second)

	_, err = store.Consume(ctx, lock.ID)
	assert.ErrorIs(t, err, ErrExpired)

	// The expired lock is gone entirely on the next attempt.
	_, err = store.Consume(ctx, lock.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentConsumeSingleWinner(t *testing.T) {
	store := NewMemoryStore(DefaultValidity)
	ctx := context.Background()

	lock, err := store.Create(ctx, 7, decimal.NewFromInt(5000), decimal.NewFromFloat(6700))
	assert.NoError(t, err)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Consume(ctx, lock.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyConsumed)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestComputeGrams(t *testing.T) {
	grams := computeGrams(decimal.NewFromInt(5000), decimal.NewFromFloat(6700))
	assert.Equal(t, "0.7463", grams.String())

	grams = computeGrams(decimal.NewFromInt(100), decimal.NewFromFloat(6834.51))
	assert.Equal(t, "0.0146", grams.String())
}
