package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"time"

	"github.com/skip2/go-qrcode"
)

// QRService renders collect codes: a QR encoding the wallet account
// number so another wallet can address a transfer to it.
type QRService struct {
	db *sql.DB
}

func NewQRService(db *sql.DB) *QRService {
	return &QRService{db: db}
}

// GenerateCollectCode returns the encoded payload and a base64 PNG of the
// QR for the given user's account.
func (s *QRService) GenerateCollectCode(ctx context.Context, userID int64) (string, string, error) {
	var accountNo, fullName string
	err := s.db.QueryRowContext(ctx, `
		SELECT account_no, full_name FROM users WHERE id = $1`, userID).Scan(&accountNo, &fullName)
	if err != nil {
		return "", "", err
	}

	payload := map[string]any{
		"accountNo": accountNo,
		"name":      fullName,
		"issuedAt":  time.Now().Unix(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	code := base64.URLEncoding.EncodeToString(jsonData)

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return code, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
