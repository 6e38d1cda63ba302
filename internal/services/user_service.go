package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/swarnapay/backend/internal/models"
)

// UserService exposes profile, KYC, ledger and deposit endpoints.
type UserService struct {
	db        *sql.DB
	engine    *SettlementService
	qr        *QRService
	validator *ValidationHelper
}

func NewUserService(db *sql.DB, engine *SettlementService, qr *QRService) *UserService {
	return &UserService{
		db:        db,
		engine:    engine,
		qr:        qr,
		validator: NewValidationHelper(),
	}
}

// UpdateProfileRequest represents a profile update
type UpdateProfileRequest struct {
	FullName string `json:"fullName" validate:"required,min=2" example:"Asha Rao"`
	DOB      string `json:"dob" validate:"omitempty,datetime=2006-01-02" example:"1992-04-18"`
}

// UpdateKYCRequest represents a KYC submission
type UpdateKYCRequest struct {
	PANNumber string `json:"panNumber" validate:"required,len=10" example:"ABCDE1234F"`
}

// DepositRequest represents a wallet top-up
type DepositRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0" example:"1000"`
}

// GetProfile returns the user's profile and balance
// @Summary Get profile
// @Tags user
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} ErrorResponse
// @Router /user/profile [get]
func (s *UserService) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user models.User
	var balance decimal.Decimal
	var panNumber sql.NullString // NULL until KYC is submitted
	err := s.db.QueryRowContext(r.Context(), `
		SELECT u.id, u.mobile, u.email, u.full_name, u.dob, u.pan_number, u.kyc_status, u.account_no, a.balance, u.created_at
		FROM users u
		JOIN accounts a ON a.user_id = u.id
		WHERE u.id = $1`, userID).Scan(
		&user.ID, &user.Mobile, &user.Email, &user.FullName, &user.DOB,
		&panNumber, &user.KYCStatus, &user.AccountNo, &balance, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[USER] Failed to fetch profile for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch profile", http.StatusInternalServerError, nil)
		return
	}
	user.PANNumber = panNumber.String

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user":    user,
		"balance": balance,
	})
}

// UpdateProfile updates name and date of birth
// @Summary Update profile
// @Tags user
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Profile update"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /user/profile [put]
func (s *UserService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var dob *time.Time
	if req.DOB != "" {
		parsed, err := time.Parse("2006-01-02", req.DOB)
		if err != nil {
			SendErrorResponse(w, "Invalid date of birth", http.StatusBadRequest, nil)
			return
		}
		dob = &parsed
	}

	_, err := s.db.ExecContext(r.Context(), `
		UPDATE users SET full_name = $1, dob = COALESCE($2, dob) WHERE id = $3`,
		req.FullName, dob, userID)
	if err != nil {
		log.Printf("[USER] Failed to update profile for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to update profile", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Profile updated"})
}

// UpdateKYC records the PAN and marks KYC verified (mock verification)
// @Summary Submit KYC
// @Tags user
// @Accept json
// @Produce json
// @Param request body UpdateKYCRequest true "KYC submission"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /user/kyc [post]
func (s *UserService) UpdateKYC(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateKYCRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Auto-verify: there is no real KYC provider behind this.
	_, err := s.db.ExecContext(r.Context(), `
		UPDATE users SET pan_number = $1, kyc_status = 'VERIFIED' WHERE id = $2`,
		req.PANNumber, userID)
	if err != nil {
		log.Printf("[USER] Failed to update KYC for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to update KYC", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message":   "KYC details updated",
		"kycStatus": "VERIFIED",
	})
}

// GetTransactions returns the ledger, newest first
// @Summary List ledger entries
// @Tags user
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} ErrorResponse
// @Router /user/transactions [get]
func (s *UserService) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	entries, err := s.engine.Ledger(r.Context(), userID)
	if err != nil {
		log.Printf("[USER] Failed to fetch ledger for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"transactions": entries})
}

// Deposit credits the wallet
// @Summary Deposit funds
// @Tags user
// @Accept json
// @Produce json
// @Param request body DepositRequest true "Deposit request"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /user/deposit [post]
func (s *UserService) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req DepositRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, err)
		return
	}

	balance, err := s.engine.Deposit(r.Context(), userID, decimal.NewFromFloat(req.Amount))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		case errors.Is(err, ErrAccountNotFound):
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		default:
			log.Printf("[USER] Deposit failed for user %d: %v", userID, err)
			SendErrorResponse(w, "Failed to process deposit", http.StatusInternalServerError, nil)
		}
		return
	}

	log.Printf("[USER] User %d deposited %s", userID, decimal.NewFromFloat(req.Amount).Round(2))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Deposit successful",
		"balance": balance,
	})
}

// GetDepositQR returns a collect QR for the user's account number
// @Summary Deposit QR code
// @Description Returns a QR encoding the wallet account number for receiving transfers
// @Tags user
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /user/deposit/qr [get]
func (s *UserService) GetDepositQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	code, image, err := s.qr.GenerateCollectCode(r.Context(), userID)
	if err != nil {
		log.Printf("[USER] Failed to generate collect QR for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"qrImage": image,
	})
}
