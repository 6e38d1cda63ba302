package services

import (
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
	tempTokenTTL    = 5 * time.Minute
	otpTTL          = 5 * time.Minute
)

// joiningBonus is credited once at registration, through the settlement
// engine so the welcome entry obeys the same ledger invariants.
var joiningBonus = decimal.NewFromFloat(1000.00)

// AuthService handles registration and the OTP login flow.
type AuthService struct {
	db        *sql.DB
	engine    *SettlementService
	validator *ValidationHelper
}

func NewAuthService(db *sql.DB, engine *SettlementService) *AuthService {
	return &AuthService{
		db:        db,
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Mobile   string `json:"mobile" validate:"required,min=10,max=15" example:"+919812345678"` // Mobile number
	Password string `json:"password" validate:"required,min=6" example:"password123"`         // Password
	FullName string `json:"fullName" validate:"required,min=2" example:"Asha Rao"`            // Full name
}

// LoginInitiateRequest represents the first login step
type LoginInitiateRequest struct {
	Mobile   string `json:"mobile" validate:"required" example:"+919812345678"`       // Mobile number
	Password string `json:"password" validate:"required,min=6" example:"password123"` // Password
}

// LoginVerifyRequest represents the OTP verification step
type LoginVerifyRequest struct {
	OTP string `json:"otp" validate:"required,len=6" example:"482913"` // One-time password
}

// RefreshRequest represents a token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Register creates a user, wallet account and joining bonus atomically
// @Summary Register a new user
// @Description Create a user and a wallet account credited with the joining bonus
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE mobile = $1)`, req.Mobile).Scan(&exists); err != nil {
		log.Printf("[AUTH] Registration lookup failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		SendErrorResponse(w, "User already exists", http.StatusConflict, nil)
		return
	}

	passwordHash, err := hashSecret(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	accountNo := generateAccountNo()

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[AUTH] Transaction start failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRow(`
		INSERT INTO users (mobile, password_hash, full_name, email, account_no, kyc_status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
		RETURNING id`,
		req.Mobile, passwordHash, req.FullName, fmt.Sprintf("%s@example.com", req.Mobile), accountNo, time.Now()).Scan(&userID)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "User already exists", http.StatusConflict, nil)
		return
	}

	if err := s.engine.CreateAccountTx(tx, userID); err != nil {
		log.Printf("[AUTH] Account creation failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if err := s.engine.CreditBonusTx(tx, userID, joiningBonus); err != nil {
		log.Printf("[AUTH] Bonus credit failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		log.Printf("[AUTH] Transaction commit failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] User created successfully - ID: %d, Mobile: %s", userID, req.Mobile)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"userId":  userID,
		"message": "Login to continue",
	})
}

// LoginInitiate verifies the password and sends an OTP
// @Summary Start login
// @Description Verify credentials and issue a pending-2FA token plus an OTP
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginInitiateRequest true "Login request"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /auth/login/initiate [post]
func (s *AuthService) LoginInitiate(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginInitiateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var userID int64
	var passwordHash string
	err := s.db.QueryRow(`SELECT id, password_hash FROM users WHERE mobile = $1`, req.Mobile).Scan(&userID, &passwordHash)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[AUTH] Login lookup failed for %s: %v", req.Mobile, err)
		SendErrorResponse(w, "Failed to process login", http.StatusInternalServerError, nil)
		return
	}

	if !verifySecret(req.Password, passwordHash) {
		log.Printf("[AUTH] Invalid password for mobile: %s", req.Mobile)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	otp, err := generateOTP()
	if err != nil {
		log.Printf("[AUTH] OTP generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process login", http.StatusInternalServerError, nil)
		return
	}

	otpHash, err := hashSecret(otp)
	if err != nil {
		log.Printf("[AUTH] OTP hashing failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process login", http.StatusInternalServerError, nil)
		return
	}

	_, err = s.db.Exec(`UPDATE users SET otp_secret = $1, otp_expiry = $2 WHERE id = $3`,
		otpHash, time.Now().Add(otpTTL), userID)
	if err != nil {
		log.Printf("[AUTH] OTP store failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process login", http.StatusInternalServerError, nil)
		return
	}

	tempToken, err := generateTempToken(userID)
	if err != nil {
		log.Printf("[AUTH] Temp token generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process login", http.StatusInternalServerError, nil)
		return
	}

	// A real deployment would send an SMS here.
	log.Printf("[DEV] OTP for %s: %s", req.Mobile, otp)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message":   "OTP Sent",
		"tempToken": tempToken,
		"devOtp":    otp,
	})
}

// LoginVerify checks the OTP and issues access and refresh tokens
// @Summary Complete login
// @Description Verify the OTP issued by login/initiate and return token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginVerifyRequest true "OTP verification"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /auth/login/verify [post]
func (s *AuthService) LoginVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int64)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req LoginVerifyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var otpHash sql.NullString
	var otpExpiry sql.NullTime
	err := s.db.QueryRow(`SELECT otp_secret, otp_expiry FROM users WHERE id = $1`, userID).Scan(&otpHash, &otpExpiry)
	if err != nil || !otpHash.Valid || !otpExpiry.Valid {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if time.Now().After(otpExpiry.Time) {
		SendErrorResponse(w, "OTP Expired", http.StatusBadRequest, nil)
		return
	}

	if !verifySecret(req.OTP, otpHash.String) {
		log.Printf("[AUTH] Invalid OTP for user %d", userID)
		SendErrorResponse(w, "Invalid OTP", http.StatusBadRequest, nil)
		return
	}

	if _, err := s.db.Exec(`UPDATE users SET otp_secret = NULL, otp_expiry = NULL WHERE id = $1`, userID); err != nil {
		log.Printf("[AUTH] OTP clear failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process login", http.StatusInternalServerError, nil)
		return
	}

	accessToken, err := generateAccessToken(userID)
	if err != nil {
		log.Printf("[AUTH] Access token generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	refreshToken, err := generateRefreshToken(userID)
	if err != nil {
		log.Printf("[AUTH] Refresh token generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.db.Exec(`INSERT INTO sessions (user_id, refresh_token, created_at) VALUES ($1, $2, $3)`,
		userID, refreshToken, time.Now()); err != nil {
		log.Printf("[AUTH] Session store failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to process login", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %d", userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// Refresh exchanges a refresh token for a new access token
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh request"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/refresh [post]
func (s *AuthService) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "No token provided", http.StatusUnauthorized, nil)
		return
	}

	var sessionUserID int64
	err := s.db.QueryRow(`SELECT user_id FROM sessions WHERE refresh_token = $1`, req.RefreshToken).Scan(&sessionUserID)
	if err != nil {
		SendErrorResponse(w, "Invalid refresh token", http.StatusForbidden, nil)
		return
	}

	token, err := jwt.Parse(req.RefreshToken, func(token *jwt.Token) (any, error) {
		return []byte(viper.GetString("jwt.refresh_secret")), nil
	})
	if err != nil || !token.Valid {
		SendErrorResponse(w, "Invalid token", http.StatusForbidden, nil)
		return
	}

	accessToken, err := generateAccessToken(sessionUserID)
	if err != nil {
		log.Printf("[AUTH] Access token generation failed for user %d: %v", sessionUserID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"accessToken": accessToken})
}

func generateAccessToken(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(accessTokenTTL).Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func generateRefreshToken(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(refreshTokenTTL).Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.refresh_secret")))
}

func generateTempToken(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"purpose": "2FA_PENDING",
		"exp":     time.Now().Add(tempTokenTTL).Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.temp_secret")))
}

func hashSecret(secret string) (string, error) {
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifySecret(secret, hashed string) bool {
	parts := strings.Split(hashed, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(secret), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}

// generateAccountNo returns a 12-digit wallet account number starting
// with 9.
func generateAccountNo() string {
	const digits = "0123456789"
	b := make([]byte, 11)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return "9" + string(b)
}

func generateOTP() (string, error) {
	b := make([]byte, 4)
	if _, err := cryptorand.Read(b); err != nil {
		return "", err
	}
	n := (int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])) % 1000000
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%06d", n), nil
}
