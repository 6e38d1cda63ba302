package services

import "errors"

// Business-rule failures returned to callers as typed errors. Storage
// failures are wrapped and surfaced generically; the whole settlement is
// rolled back so no partial effect is ever visible.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientHolding = errors.New("insufficient gold balance")
	ErrAccountNotFound     = errors.New("account not found")
)
