package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Biller is one entry in the static BBPS-style biller directory.
type Biller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BillPayment is the persisted record of a settled bill, written in the
// same transaction as the ledger entry it belongs to.
type BillPayment struct {
	ID             int64           `json:"id" db:"id"`
	UserID         int64           `json:"user_id" db:"user_id"`
	Category       string          `json:"category" db:"category"`
	BillerID       string          `json:"biller_id" db:"biller_id"`
	BillerName     string          `json:"biller_name" db:"biller_name"`
	ConsumerNumber string          `json:"consumer_number" db:"consumer_number"`
	BillAmount     decimal.Decimal `json:"bill_amount" db:"bill_amount"`
	TransactionID  string          `json:"transaction_id" db:"transaction_id"`
	BBPSRefID      string          `json:"bbps_ref_id" db:"bbps_ref_id"`
	Status         string          `json:"status" db:"status"`
	PaymentMode    string          `json:"payment_mode" db:"payment_mode"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
