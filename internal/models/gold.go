package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// GoldTrade is the persisted record of a completed buy or sell, written in
// the same transaction as the ledger entry it belongs to.
type GoldTrade struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Type          string          `json:"type" db:"type"` // BUY or SELL
	AmountINR     decimal.Decimal `json:"amount_inr" db:"amount_inr"`
	GoldGrams     decimal.Decimal `json:"gold_grams" db:"gold_grams"`
	PricePerGram  decimal.Decimal `json:"price_per_gram" db:"price_per_gram"`
	ProviderRefID string          `json:"provider_ref_id" db:"provider_ref_id"`
	Status        string          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Portfolio is the read model for a user's gold position.
type Portfolio struct {
	TotalGrams decimal.Decimal `json:"total_grams"`
	Valuation  decimal.Decimal `json:"valuation"` // at current sell price
}
