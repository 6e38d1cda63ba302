package models

import "time"

type User struct {
	ID        int64      `json:"id" example:"1"`                      // User ID
	Mobile    string     `json:"mobile" example:"+919812345678"`      // Registered mobile number
	Email     string     `json:"email" example:"user@example.com"`    // User email
	FullName  string     `json:"full_name" example:"Asha Rao"`        // Full name
	DOB       *time.Time `json:"dob,omitempty"`                       // Date of birth
	PANNumber string     `json:"pan_number" example:"ABCDE1234F"`     // PAN for KYC
	KYCStatus string     `json:"kyc_status" example:"PENDING"`        // PENDING or VERIFIED
	AccountNo string     `json:"account_no" example:"912345678901"`   // 12-digit wallet account number
	CreatedAt time.Time  `json:"created_at"`
}
