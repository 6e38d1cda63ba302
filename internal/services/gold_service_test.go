package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/swarnapay/backend/internal/lease"
	"github.com/swarnapay/backend/internal/rates"
)

type stubSpotSource struct {
	price decimal.Decimal
}

func (s *stubSpotSource) FetchSpotPrice(_ context.Context) (decimal.Decimal, error) {
	return s.price, nil
}

func newGoldTestService(t *testing.T) (*GoldService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	cache := rates.NewCache(
		&stubSpotSource{price: decimal.NewFromInt(6500)},
		decimal.NewFromFloat(0.02),
		decimal.NewFromFloat(0.03),
		time.Minute,
	)
	service := NewGoldService(NewSettlementService(db), cache, lease.NewMemoryStore(lease.DefaultValidity))
	return service, mock, func() { db.Close() }
}

func authedRequest(method, target string, body []byte, userID int64) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), "userID", userID))
}

func TestGoldService_GetRates(t *testing.T) {
	service, _, cleanup := newGoldTestService(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/gold/rates", nil)
	rec := httptest.NewRecorder()
	service.GetRates(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var quote rates.Quote
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, rates.SourceLive, quote.Source)
	assert.Equal(t, "6828.9", quote.BuyPrice.String())
	assert.Equal(t, "6370", quote.SellPrice.String())
}

func TestGoldService_QuoteAndConfirm(t *testing.T) {
	service, mock, cleanup := newGoldTestService(t)
	defer cleanup()

	// Step 1: lock the price.
	body, _ := json.Marshal(QuoteRequest{AmountINR: 5000})
	rec := httptest.NewRecorder()
	service.CreateQuote(rec, authedRequest(http.MethodPost, "/gold/buy/quote", body, 7))
	assert.Equal(t, http.StatusOK, rec.Code)

	var quoteResp struct {
		LockID    string          `json:"lockId"`
		Grams     decimal.Decimal `json:"grams"`
		AmountINR decimal.Decimal `json:"amountINR"`
		ValidFor  string          `json:"validFor"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quoteResp))
	assert.Equal(t, "0.7322", quoteResp.Grams.String())
	assert.Equal(t, "5 minutes", quoteResp.ValidFor)

	// Step 2: confirm against the locked price.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id, balance, gold_grams, version, updated_at FROM accounts WHERE user_id = \\$1 FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(accountRow("10000", "0", 1))
	mock.ExpectExec("UPDATE accounts").
		WithArgs(decimal.NewFromInt(5000), decimal.NewFromFloat(0.7322), sqlmock.AnyArg(), int64(7), 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(int64(7), decimal.NewFromInt(5000), "DEBIT", "GOLD_BUY", "Bought 0.7322g Gold", decimal.NewFromInt(5000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO gold_trades").
		WithArgs(int64(7), "BUY", decimal.NewFromInt(5000), decimal.NewFromFloat(0.7322), decimal.NewFromFloat(6828.9), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	body, _ = json.Marshal(ConfirmBuyRequest{LockID: quoteResp.LockID})
	rec = httptest.NewRecorder()
	service.ConfirmBuy(rec, authedRequest(http.MethodPost, "/gold/buy/confirm", body, 7))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Gold purchased successfully")
	assert.NoError(t, mock.ExpectationsWereMet())

	// Step 3: the same lock cannot be used again.
	rec = httptest.NewRecorder()
	service.ConfirmBuy(rec, authedRequest(http.MethodPost, "/gold/buy/confirm", body, 7))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Quote already used")
}

func TestGoldService_ConfirmUnknownLock(t *testing.T) {
	service, _, cleanup := newGoldTestService(t)
	defer cleanup()

	body, _ := json.Marshal(ConfirmBuyRequest{LockID: uuid.NewString()})
	rec := httptest.NewRecorder()
	service.ConfirmBuy(rec, authedRequest(http.MethodPost, "/gold/buy/confirm", body, 7))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid lock ID")
}

func TestGoldService_ConfirmForeignLock(t *testing.T) {
	service, _, cleanup := newGoldTestService(t)
	defer cleanup()

	body, _ := json.Marshal(QuoteRequest{AmountINR: 1000})
	rec := httptest.NewRecorder()
	service.CreateQuote(rec, authedRequest(http.MethodPost, "/gold/buy/quote", body, 7))
	assert.Equal(t, http.StatusOK, rec.Code)

	var quoteResp struct {
		LockID string `json:"lockId"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quoteResp))

	// A different user cannot settle this lock.
	body, _ = json.Marshal(ConfirmBuyRequest{LockID: quoteResp.LockID})
	rec = httptest.NewRecorder()
	service.ConfirmBuy(rec, authedRequest(http.MethodPost, "/gold/buy/confirm", body, 8))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lock does not belong to user")
}

func TestGoldService_Sell(t *testing.T) {
	service, mock, cleanup := newGoldTestService(t)
	defer cleanup()

	t.Run("successful sell at current price", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, balance, gold_grams, version, updated_at FROM accounts WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(accountRow("0", "2", 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.NewFromInt(3185), decimal.NewFromFloat(1.5), sqlmock.AnyArg(), int64(7), 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO gold_trades").
			WithArgs(int64(7), "SELL", decimal.NewFromInt(3185), decimal.NewFromFloat(0.5), decimal.NewFromInt(6370), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(SellRequest{Grams: 0.5})
		rec := httptest.NewRecorder()
		service.Sell(rec, authedRequest(http.MethodPost, "/gold/sell", body, 7))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Gold sold successfully")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient holding", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, balance, gold_grams, version, updated_at FROM accounts WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(accountRow("0", "0.1", 1))
		mock.ExpectRollback()

		body, _ := json.Marshal(SellRequest{Grams: 0.5})
		rec := httptest.NewRecorder()
		service.Sell(rec, authedRequest(http.MethodPost, "/gold/sell", body, 7))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Insufficient gold balance")
	})
}

func TestGoldService_GetPortfolio(t *testing.T) {
	service, mock, cleanup := newGoldTestService(t)
	defer cleanup()

	t.Run("existing holding", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id, balance, gold_grams, version, updated_at FROM accounts WHERE user_id = \\$1").
			WithArgs(int64(7)).
			WillReturnRows(accountRow("1000", "2", 1))

		rec := httptest.NewRecorder()
		service.GetPortfolio(rec, authedRequest(http.MethodGet, "/gold/portfolio", nil, 7))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			TotalGrams decimal.Decimal `json:"totalGrams"`
			Valuation  decimal.Decimal `json:"valuation"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2", resp.TotalGrams.String())
		// 2g at the 6370 sell price.
		assert.Equal(t, "12740", resp.Valuation.String())
	})

	t.Run("no account yet", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id, balance, gold_grams, version, updated_at FROM accounts WHERE user_id = \\$1").
			WithArgs(int64(42)).
			WillReturnError(sql.ErrNoRows)

		rec := httptest.NewRecorder()
		service.GetPortfolio(rec, authedRequest(http.MethodGet, "/gold/portfolio", nil, 42))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			TotalGrams decimal.Decimal `json:"totalGrams"`
			Valuation  decimal.Decimal `json:"valuation"`
		}
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.TotalGrams.IsZero())
		assert.True(t, resp.Valuation.IsZero())
	})
}
