package services

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/swarnapay/backend/internal/lease"
	"github.com/swarnapay/backend/internal/rates"
)

// GoldService exposes the trading surface: rates, portfolio, buy quote,
// buy confirmation and sell.
type GoldService struct {
	engine    *SettlementService
	rates     *rates.Cache
	locks     lease.Store
	validator *ValidationHelper
}

func NewGoldService(engine *SettlementService, rateCache *rates.Cache, locks lease.Store) *GoldService {
	return &GoldService{
		engine:    engine,
		rates:     rateCache,
		locks:     locks,
		validator: NewValidationHelper(),
	}
}

// QuoteRequest represents a buy quote request
type QuoteRequest struct {
	AmountINR float64 `json:"amountINR" validate:"required,gt=0" example:"5000"`
}

// ConfirmBuyRequest represents a buy confirmation
type ConfirmBuyRequest struct {
	LockID string `json:"lockId" validate:"required,uuid4" example:"6fa459ea-ee8a-3ca4-894e-db77e160355e"`
}

// SellRequest represents a sell order
type SellRequest struct {
	Grams float64 `json:"grams" validate:"required,gt=0" example:"0.5"`
}

// GetRates returns the current buy/sell prices
// @Summary Get gold rates
// @Description Get current buy and sell prices per gram, derived from the live spot price
// @Tags gold
// @Produce json
// @Success 200 {object} rates.Quote
// @Router /gold/rates [get]
func (s *GoldService) GetRates(w http.ResponseWriter, r *http.Request) {
	quote := s.rates.GetRates(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}

// GetPortfolio returns the user's gold position
// @Summary Get gold portfolio
// @Description Get the authenticated user's gold holding and its valuation at the current sell price
// @Tags gold
// @Produce json
// @Success 200 {object} models.Portfolio
// @Failure 401 {object} ErrorResponse
// @Router /gold/portfolio [get]
func (s *GoldService) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	quote := s.rates.GetRates(r.Context())

	acct, err := s.engine.Account(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"totalGrams": decimal.Zero,
				"valuation":  decimal.Zero,
			})
			return
		}
		log.Printf("[GOLD] Failed to fetch account for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch portfolio", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"totalGrams": acct.GoldGrams,
		"valuation":  acct.GoldGrams.Mul(quote.SellPrice).Round(2),
	})
}

// CreateQuote issues a time-boxed buy quote
// @Summary Create a buy quote
// @Description Lock the current buy price for a fixed INR amount for five minutes
// @Tags gold
// @Accept json
// @Produce json
// @Param request body QuoteRequest true "Quote request"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /gold/buy/quote [post]
func (s *GoldService) CreateQuote(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req QuoteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	quote := s.rates.GetRates(r.Context())
	amount := decimal.NewFromFloat(req.AmountINR).Round(2)

	lock, err := s.locks.Create(r.Context(), userID, amount, quote.BuyPrice)
	if err != nil {
		log.Printf("[GOLD] Failed to create quote lock for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create quote", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[GOLD] Quote %s created for user %d: %s INR -> %sg at %s", lock.ID, userID, lock.AmountINR, lock.Grams, lock.PricePerGram)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"lockId":    lock.ID,
		"grams":     lock.Grams,
		"amountINR": lock.AmountINR,
		"validFor":  "5 minutes",
	})
}

// ConfirmBuy consumes a quote lock and settles the purchase
// @Summary Confirm a gold purchase
// @Description Consume a previously issued quote lock and settle the buy at the locked price
// @Tags gold
// @Accept json
// @Produce json
// @Param request body ConfirmBuyRequest true "Confirmation request"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /gold/buy/confirm [post]
func (s *GoldService) ConfirmBuy(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req ConfirmBuyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	lock, err := s.locks.Consume(r.Context(), req.LockID)
	if err != nil {
		switch {
		case errors.Is(err, lease.ErrNotFound):
			SendErrorResponse(w, "Invalid lock ID", http.StatusBadRequest, nil)
		case errors.Is(err, lease.ErrExpired):
			SendErrorResponse(w, "Quote expired", http.StatusBadRequest, nil)
		case errors.Is(err, lease.ErrAlreadyConsumed):
			SendErrorResponse(w, "Quote already used", http.StatusBadRequest, nil)
		default:
			log.Printf("[GOLD] Failed to consume lock %s: %v", req.LockID, err)
			SendErrorResponse(w, "Failed to confirm purchase", http.StatusInternalServerError, nil)
		}
		return
	}

	if lock.UserID != userID {
		log.Printf("[GOLD] Lock %s belongs to user %d, confirmation attempted by %d", lock.ID, lock.UserID, userID)
		SendErrorResponse(w, "Lock does not belong to user", http.StatusForbidden, nil)
		return
	}

	// The lock is consumed at this point. A settlement failure below does
	// not reinstate it: the user must request a fresh quote
	// (burn-on-attempt).
	if err := s.engine.ExecuteBuy(r.Context(), userID, lock.AmountINR, lock.Grams, lock.PricePerGram); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			SendErrorResponse(w, "Insufficient funds", http.StatusBadRequest, nil)
			return
		}
		log.Printf("[GOLD] Buy settlement failed for user %d, lock %s: %v", userID, lock.ID, err)
		SendErrorResponse(w, "Failed to confirm purchase", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[GOLD] User %d bought %sg at %s (lock %s)", userID, lock.Grams, lock.PricePerGram, lock.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Gold purchased successfully",
		"grams":   lock.Grams,
	})
}

// Sell settles a sale at the current sell price
// @Summary Sell gold
// @Description Sell a gram quantity at the current sell price; there is no quote step for sales
// @Tags gold
// @Accept json
// @Produce json
// @Param request body SellRequest true "Sell request"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /gold/sell [post]
func (s *GoldService) Sell(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SellRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	grams := decimal.NewFromFloat(req.Grams).Round(4)

	// Sales are re-priced at confirmation time; the sell price is read
	// once and used for both valuation and the trade record.
	quote := s.rates.GetRates(r.Context())

	amountINR, err := s.engine.ExecuteSell(r.Context(), userID, grams, quote.SellPrice)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientHolding):
			SendErrorResponse(w, "Insufficient gold balance", http.StatusBadRequest, nil)
		case errors.Is(err, ErrAccountNotFound):
			SendErrorResponse(w, "Insufficient gold balance", http.StatusBadRequest, nil)
		default:
			log.Printf("[GOLD] Sell settlement failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to sell gold", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[GOLD] User %d sold %sg for %s INR", userID, grams, amountINR)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":   "Gold sold successfully",
		"amountINR": amountINR,
	})
}

