package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EntryTypeDebit  = "DEBIT"
	EntryTypeCredit = "CREDIT"
)

const (
	CategoryDeposit      = "DEPOSIT"
	CategoryBillPayment  = "BILL_PAYMENT"
	CategoryGoldBuy      = "GOLD_BUY"
	CategoryGoldSell     = "GOLD_SELL"
	CategoryJoiningBonus = "JOINING_BONUS"
)

// Account holds the cash balance and the gold holding on one row so that a
// single row lock covers both during settlement.
type Account struct {
	UserID    int64           `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`       // INR, 2 decimal places
	GoldGrams decimal.Decimal `json:"gold_grams" db:"gold_grams"` // grams, 4 decimal places
	Version   int             `json:"version" db:"version"`       // for optimistic locking
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is append-only. Entries are never updated or deleted; the
// balance_after of the newest entry always equals the account balance.
type LedgerEntry struct {
	ID           int64           `json:"id" db:"id"`
	UserID       int64           `json:"user_id" db:"user_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	EntryType    string          `json:"entry_type" db:"entry_type"` // DEBIT or CREDIT
	Category     string          `json:"category" db:"category"`
	Description  string          `json:"description" db:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	Status       string          `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
