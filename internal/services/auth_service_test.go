package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := hashSecret("password123")
	assert.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	assert.True(t, verifySecret("password123", hash))
	assert.False(t, verifySecret("password124", hash))
	assert.False(t, verifySecret("password123", "not-a-hash"))
}

func TestGenerateAccountNo(t *testing.T) {
	for i := 0; i < 20; i++ {
		no := generateAccountNo()
		assert.Len(t, no, 12)
		assert.Equal(t, byte('9'), no[0])
		_, err := strconv.ParseUint(no, 10, 64)
		assert.NoError(t, err)
	}
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		otp, err := generateOTP()
		assert.NoError(t, err)
		assert.Len(t, otp, 6)
		_, err = strconv.Atoi(otp)
		assert.NoError(t, err)
	}
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, NewSettlementService(db))

	t.Run("successful registration with joining bonus", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("+919812345678").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO users").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))

		// Joining bonus settles through the ledger inside the same
		// transaction.
		mock.ExpectQuery("SELECT user_id, balance, gold_grams, version, updated_at FROM accounts WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(int64(7)).
			WillReturnRows(accountRow("0", "0", 1))
		mock.ExpectExec("UPDATE accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(RegisterRequest{
			Mobile:   "+919812345678",
			Password: "password123",
			FullName: "Asha Rao",
		})
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Register(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, float64(7), resp["userId"])
		assert.Equal(t, "Login to continue", resp["message"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate mobile", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("+919812345678").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		body, _ := json.Marshal(RegisterRequest{
			Mobile:   "+919812345678",
			Password: "password123",
			FullName: "Asha Rao",
		})
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Register(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short password", func(t *testing.T) {
		body, _ := json.Marshal(RegisterRequest{
			Mobile:   "+919812345678",
			Password: "123",
			FullName: "Asha Rao",
		})
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Register(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
