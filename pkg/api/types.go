// Package api holds the request and response bodies of the HTTP surface.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// Error is the body of every non-2xx response.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Coordinate is a WGS84 position.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// SendOTPRequest asks for a one-time code to be sent to Phone.
type SendOTPRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

// VerifyOTPRequest submits a one-time code. VendorId, when set, also reports whether
// the phone already holds a credit line with that vendor.
type VerifyOTPRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	VendorId string `json:"vendor_id,omitempty"`
}

// VerifyOTPResponse is the outcome of a code submission.
type VerifyOTPResponse struct {
	Verified   bool   `json:"verified"`
	Exists     bool   `json:"exists"`
	CustomerId string `json:"customer_id,omitempty"`
}

// CheckCustomerRequest asks whether a phone already has a credit line with a vendor.
type CheckCustomerRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	VendorId string `json:"vendor_id" validate:"required"`
}

// CheckCustomerResponse is the result of a customer check.
type CheckCustomerResponse struct {
	Exists     bool   `json:"exists"`
	CustomerId string `json:"customer_id,omitempty"`
}

// RegisterRequest opens a credit line. Code must be a live one-time code for Phone.
type RegisterRequest struct {
	Phone          string `json:"phone" validate:"required,e164"`
	Code           string `json:"code" validate:"required,len=6,numeric"`
	CustomerName   string `json:"customer_name" validate:"omitempty,max=100"`
	VendorId       string `json:"vendor_id" validate:"required"`
	RequestedLimit *int64 `json:"requested_limit,omitempty" validate:"omitempty,gt=0"`
}

// ScoreEntry is one trust score history record.
type ScoreEntry struct {
	Score        int       `json:"score"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// Relation is a customer-vendor credit line.
type Relation struct {
	CustomerId        string       `json:"customer_id"`
	VendorId          string       `json:"vendor_id"`
	CustomerPhone     string       `json:"customer_phone"`
	CustomerName      string       `json:"customer_name"`
	VendorName        string       `json:"vendor_name"`
	CreditLimit       int64        `json:"credit_limit"`
	UsedCredit        int64        `json:"used_credit"`
	AvailableCredit   int64        `json:"available_credit"`
	TrustScore        int          `json:"trust_score"`
	TrustScoreHistory []ScoreEntry `json:"trust_score_history"`
	TransactionCount  int64        `json:"transaction_count"`
	TotalSpent        int64        `json:"total_spent"`
	TotalRepaid       int64        `json:"total_repaid"`
	OnTimePayments    int64        `json:"on_time_payments"`
	LatePayments      int64        `json:"late_payments"`
	DefaultCount      int64        `json:"default_count"`
	Status            string       `json:"status"`
	AutoApproved      bool         `json:"auto_approved"`
	KycVerified       bool         `json:"kyc_verified"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	LastTransactionAt *time.Time   `json:"last_transaction_at,omitempty"`
	LastPaymentAt     *time.Time   `json:"last_payment_at,omitempty"`
}

// Dashboard is a relation with its recent transactions.
type Dashboard struct {
	Relation     Relation      `json:"relation"`
	Transactions []Transaction `json:"transactions"`
}

// UpdateProfileRequest edits the dashboard fields of a relation.
type UpdateProfileRequest struct {
	CustomerName string `json:"customer_name" validate:"omitempty,max=100"`
	KycVerified  bool   `json:"kyc_verified"`
}

// SetStatusRequest moves a relation to a new status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended blocked"`
}

// ScoreResponse carries a freshly computed trust score.
type ScoreResponse struct {
	CustomerId string `json:"customer_id"`
	VendorId   string `json:"vendor_id"`
	TrustScore int    `json:"trust_score"`
}

// QRToken is an issued vendor token.
type QRToken struct {
	Token     string    `json:"token"`
	VendorId  string    `json:"vendor_id"`
	QrData    string    `json:"qr_data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidateQRRequest checks a scanned payload without consuming it.
type ValidateQRRequest struct {
	QrData     string      `json:"qr_data" validate:"required"`
	CustomerId string      `json:"customer_id" validate:"required"`
	Location   *Coordinate `json:"location,omitempty" validate:"omitempty"`
}

// ValidateQRResponse is the structured validation outcome. Valid is false with a Code
// and Reason when the scan is rejected.
type ValidateQRResponse struct {
	Valid            bool    `json:"valid"`
	Code             string  `json:"code,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	Token            string  `json:"token,omitempty"`
	VendorId         string  `json:"vendor_id,omitempty"`
	VendorName       string  `json:"vendor_name,omitempty"`
	AvailableCredit  int64   `json:"available_credit,omitempty"`
	LocationVerified bool    `json:"location_verified"`
	DistanceKm       float64 `json:"distance_km"`
}

// UseQRRequest marks a token consumed by a customer.
type UseQRRequest struct {
	Token      string `json:"token" validate:"required"`
	CustomerId string `json:"customer_id" validate:"required"`
}

// NewTransaction is a credit draw.
type NewTransaction struct {
	CustomerId  string      `json:"customer_id" validate:"required"`
	VendorId    string      `json:"vendor_id" validate:"required"`
	Amount      int64       `json:"amount" validate:"gt=0"`
	Description string      `json:"description,omitempty" validate:"omitempty,max=200"`
	QrToken     string      `json:"qr_token,omitempty"`
	Location    *Coordinate `json:"location,omitempty" validate:"omitempty"`
}

// Transaction is a recorded credit draw.
type Transaction struct {
	TransactionId    openapi_types.UUID `json:"transaction_id"`
	CustomerId       string             `json:"customer_id"`
	VendorId         string             `json:"vendor_id"`
	Amount           int64              `json:"amount"`
	TransactionType  string             `json:"transaction_type"`
	Description      string             `json:"description,omitempty"`
	PaymentStatus    string             `json:"payment_status"`
	DueDate          openapi_types.Date `json:"due_date"`
	PaidDate         *time.Time         `json:"paid_date,omitempty"`
	PaymentMethod    string             `json:"payment_method,omitempty"`
	RepaidAmount     int64              `json:"repaid_amount"`
	ScanMethod       string             `json:"scan_method"`
	LocationVerified bool               `json:"location_verified"`
	DistanceKm       float64            `json:"distance_km"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NewRepayment records a repayment against a transaction.
type NewRepayment struct {
	Amount        int64  `json:"amount" validate:"gt=0"`
	OnTime        *bool  `json:"on_time,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty" validate:"omitempty,oneof=cash upi card bank_transfer"`
}
