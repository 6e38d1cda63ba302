package services

import (
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/swarnapay/backend/internal/models"
)

// billCategories mirrors the BBPS category list. The directory is a static
// mock; a real deployment would query the BBPS biller registry.
var billCategories = []string{"ELECTRICITY", "WATER", "BROADBAND_POSTPAID", "DTH"}

var billerDirectory = map[string][]models.Biller{
	"ELECTRICITY":        {{ID: "MAHADISCOM", Name: "MSEDCL"}, {ID: "BESCOM", Name: "BESCOM"}},
	"WATER":              {{ID: "BWSSB", Name: "Bangalore Water Supply"}},
	"BROADBAND_POSTPAID": {{ID: "JIOFIBER", Name: "Jio Fiber"}, {ID: "AIRTEL", Name: "Airtel Xstream"}},
	"DTH":                {{ID: "TATASKY", Name: "Tata Play"}},
}

// BillService exposes the biller directory, mock bill fetch, payment and
// history endpoints.
type BillService struct {
	engine    *SettlementService
	validator *ValidationHelper
}

func NewBillService(engine *SettlementService) *BillService {
	return &BillService{
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// FetchBillRequest represents a bill fetch request
type FetchBillRequest struct {
	BillerID   string `json:"billerId" validate:"required" example:"MAHADISCOM"`
	ConsumerNo string `json:"consumerNo" validate:"required" example:"1234567890"`
}

// PayBillRequest represents a bill payment request
type PayBillRequest struct {
	BillerID   string  `json:"billerId" validate:"required" example:"MAHADISCOM"`
	Amount     float64 `json:"amount" validate:"required,gt=0" example:"1240"`
	ConsumerNo string  `json:"consumerNo" example:"1234567890"`
	RefID      string  `json:"refId"`
}

// GetCategories lists bill categories
// @Summary List bill categories
// @Tags bills
// @Produce json
// @Success 200 {array} string
// @Router /bills/categories [get]
func (s *BillService) GetCategories(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(billCategories)
}

// GetBillers lists billers for a category
// @Summary List billers
// @Tags bills
// @Produce json
// @Param category path string true "Bill category"
// @Success 200 {array} models.Biller
// @Router /bills/billers/{category} [get]
func (s *BillService) GetBillers(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	billers := billerDirectory[category]
	if billers == nil {
		billers = []models.Biller{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(billers)
}

// FetchBill returns a mock outstanding bill
// @Summary Fetch a bill
// @Description Mock bill fetch; a real deployment would call the BBPS API
// @Tags bills
// @Accept json
// @Produce json
// @Param request body FetchBillRequest true "Bill fetch request"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /bills/fetch [post]
func (s *BillService) FetchBill(w http.ResponseWriter, r *http.Request) {
	var req FetchBillRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Missing details", http.StatusBadRequest, err)
		return
	}

	// Simulated bill amount in the 500..2499 range.
	amount := rand.Intn(2000) + 500

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"billerId":     req.BillerID,
		"consumerNo":   req.ConsumerNo,
		"billAmount":   amount,
		"billDate":     time.Now().Format(time.RFC3339),
		"dueDate":      time.Now().Add(15 * 24 * time.Hour).Format(time.RFC3339),
		"customerName": "MOCK USER",
	})
}

// PayBill settles a bill from the wallet balance
// @Summary Pay a bill
// @Description Debit the wallet, append the ledger entry and persist the bill payment atomically
// @Tags bills
// @Accept json
// @Produce json
// @Param request body PayBillRequest true "Bill payment request"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /bills/pay [post]
func (s *BillService) PayBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req PayBillRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	category, billerName := lookupBiller(req.BillerID)
	consumerNo := req.ConsumerNo
	if consumerNo == "" {
		consumerNo = "UNKNOWN"
	}

	txID, bbpsRefID, err := s.engine.PayBill(r.Context(), userID, BillPaymentParams{
		Category:       category,
		BillerID:       req.BillerID,
		BillerName:     billerName,
		ConsumerNumber: consumerNo,
		Amount:         decimal.NewFromFloat(req.Amount),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			SendErrorResponse(w, "Insufficient funds", http.StatusBadRequest, nil)
		case errors.Is(err, ErrInvalidAmount):
			SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		default:
			log.Printf("[BILLS] Payment failed for user %d, biller %s: %v", userID, req.BillerID, err)
			SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[BILLS] User %d paid %s to %s (tx %s)", userID, decimal.NewFromFloat(req.Amount).Round(2), req.BillerID, txID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":       "Bill Payment Successful",
		"transactionId": txID,
		"bbpsRefId":     bbpsRefID,
	})
}

// GetHistory lists the user's bill payments, newest first
// @Summary Bill payment history
// @Tags bills
// @Produce json
// @Success 200 {array} models.BillPayment
// @Failure 401 {object} ErrorResponse
// @Router /bills/history [get]
func (s *BillService) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	history, err := s.engine.BillHistory(r.Context(), userID)
	if err != nil {
		log.Printf("[BILLS] Failed to fetch history for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch history", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}

func lookupBiller(billerID string) (category, name string) {
	for cat, billers := range billerDirectory {
		for _, b := range billers {
			if b.ID == billerID {
				return cat, b.Name
			}
		}
	}
	return "UNKNOWN", "Unknown Biller"
}
