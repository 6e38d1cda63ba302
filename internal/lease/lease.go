// Package lease implements the quote-lock store: short-lived, single-use
// reservations of a priced gold quantity. Locks behave as keyed leases so
// the store can be backed either by process memory or by a shared Redis.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("quote lock not found")
	ErrExpired         = errors.New("quote lock expired")
	ErrAlreadyConsumed = errors.New("quote lock already consumed")
)

// DefaultValidity is the quote window offered to the user.
const DefaultValidity = 5 * time.Minute

// Lock binds a user to a priced quantity. The locked price and grams are
// the contract for the life of the lock; they are never re-derived at
// confirmation time.
type Lock struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"user_id"`
	Grams        decimal.Decimal `json:"grams"`
	AmountINR    decimal.Decimal `json:"amount_inr"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// Store issues and consumes quote locks.
//
// Consume is an atomic compare-and-clear per lock id: of two racing
// confirmations of the same lock, exactly one succeeds and the other sees
// ErrAlreadyConsumed. An expired lock is deleted on the consume path so it
// cannot be retried.
type Store interface {
	Create(ctx context.Context, userID int64, amountINR, buyPrice decimal.Decimal) (Lock, error)
	Consume(ctx context.Context, id string) (Lock, error)
}

func computeGrams(amountINR, buyPrice decimal.Decimal) decimal.Decimal {
	return amountINR.Div(buyPrice).Round(4)
}
