package models

import (
	"time"
)

// RelationStatus defines the lifecycle states of a customer-vendor credit relation.
type RelationStatus string

const (
	ACTIVE    RelationStatus = "active"
	SUSPENDED RelationStatus = "suspended"
	BLOCKED   RelationStatus = "blocked"
)

// PaymentStatus defines the repayment state of a credit transaction.
type PaymentStatus string

const (
	PENDING PaymentStatus = "pending"
	PAID    PaymentStatus = "paid"
	OVERDUE PaymentStatus = "overdue"
)

// ScanMethod records how a draw was authorised.
type ScanMethod string

const (
	ScanQR     ScanMethod = "qr"
	ScanManual ScanMethod = "manual"
)

// TransactionTypeCreditPurchase is the only transaction type the ledger issues.
const TransactionTypeCreditPurchase = "credit_purchase"

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude" dynamodbav:"latitude"`
	Longitude float64 `json:"longitude" dynamodbav:"longitude"`
}

// RelationKey identifies a relation by its (customer, vendor) pair.
type RelationKey struct {
	CustomerID string
	VendorID   string
}

// String renders the key in the form used by transaction indexes.
func (k RelationKey) String() string {
	return k.CustomerID + "#" + k.VendorID
}

// ScoreEntry is one append-only trust score history record.
type ScoreEntry struct {
	Score        int       `json:"score" dynamodbav:"score"`
	CalculatedAt time.Time `json:"calculated_at" dynamodbav:"calculated_at"`
}

// Relation is the customer-vendor credit relationship, the aggregate root of the ledger.
// Amounts are int64 minor currency units.
type Relation struct {
	CustomerID        string         `dynamodbav:"customer_id"`
	VendorID          string         `dynamodbav:"vendor_id"`
	CustomerPhone     string         `dynamodbav:"customer_phone"`
	CustomerName      string         `dynamodbav:"customer_name"`
	VendorName        string         `dynamodbav:"vendor_name"`
	CreditLimit       int64          `dynamodbav:"credit_limit"`
	UsedCredit        int64          `dynamodbav:"used_credit"`
	AvailableCredit   int64          `dynamodbav:"available_credit"`
	TrustScore        int            `dynamodbav:"trust_score"`
	TrustScoreHistory []ScoreEntry   `dynamodbav:"trust_score_history"`
	TransactionCount  int64          `dynamodbav:"transaction_count"`
	TotalSpent        int64          `dynamodbav:"total_spent"`
	TotalRepaid       int64          `dynamodbav:"total_repaid"`
	OnTimePayments    int64          `dynamodbav:"on_time_payments"`
	LatePayments      int64          `dynamodbav:"late_payments"`
	DefaultCount      int64          `dynamodbav:"default_count"`
	Status            RelationStatus `dynamodbav:"status"`
	AutoApproved      bool           `dynamodbav:"auto_approved"`
	KYCVerified       bool           `dynamodbav:"kyc_verified"`
	Version           int64          `dynamodbav:"version"`
	CreatedAt         time.Time      `dynamodbav:"created_at"`
	UpdatedAt         time.Time      `dynamodbav:"updated_at"`
	LastTransactionAt *time.Time     `dynamodbav:"last_transaction_at,omitempty"`
	LastPaymentAt     *time.Time     `dynamodbav:"last_payment_at,omitempty"`
}

// Key returns the relation's (customer, vendor) key.
func (r *Relation) Key() RelationKey {
	return RelationKey{CustomerID: r.CustomerID, VendorID: r.VendorID}
}

// Transaction is an immutable credit draw. Only its payment fields change after creation.
type Transaction struct {
	TransactionID    string        `dynamodbav:"transaction_id"`
	CustomerID       string        `dynamodbav:"customer_id"`
	VendorID         string        `dynamodbav:"vendor_id"`
	RelationKey      string        `dynamodbav:"relation_key"`
	Amount           int64         `dynamodbav:"amount"`
	TransactionType  string        `dynamodbav:"transaction_type"`
	Description      string        `dynamodbav:"description"`
	PaymentStatus    PaymentStatus `dynamodbav:"payment_status"`
	DueDate          time.Time     `dynamodbav:"due_date,unixtime"`
	PaidDate         *time.Time    `dynamodbav:"paid_date,omitempty"`
	PaymentMethod    string        `dynamodbav:"payment_method,omitempty"`
	RepaidAmount     int64         `dynamodbav:"repaid_amount"`
	CustomerLocation *Coordinate   `dynamodbav:"customer_location,omitempty"`
	VendorLocation   *Coordinate   `dynamodbav:"vendor_location,omitempty"`
	DistanceKm       float64       `dynamodbav:"distance_km"`
	LocationVerified bool          `dynamodbav:"location_verified"`
	QRToken          string        `dynamodbav:"qr_token,omitempty"`
	ScanMethod       ScanMethod    `dynamodbav:"scan_method"`
	DefaultedAt      *time.Time    `dynamodbav:"defaulted_at,omitempty"`
	CreatedAt        time.Time     `dynamodbav:"created_at"`
	UpdatedAt        time.Time     `dynamodbav:"updated_at"`
}

// QRToken is a single-use, time-boxed vendor authorisation token.
type QRToken struct {
	Token     string     `dynamodbav:"token"`
	VendorID  string     `dynamodbav:"vendor_id"`
	QRData    string     `dynamodbav:"qr_data"`
	CreatedAt time.Time  `dynamodbav:"created_at,unixtime"`
	ExpiresAt time.Time  `dynamodbav:"expires_at,unixtime"`
	Used      bool       `dynamodbav:"used"`
	UsedBy    string     `dynamodbav:"used_by,omitempty"`
	UsedAt    *time.Time `dynamodbav:"used_at,omitempty"`
}

// Expired reports whether the token is past its expiry at now.
func (t *QRToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Vendor is the subset of vendor data the credit core reads.
type Vendor struct {
	VendorID            string      `dynamodbav:"vendor_id"`
	Name                string      `dynamodbav:"name"`
	Location            *Coordinate `dynamodbav:"location,omitempty"`
	CreditLimitOverride *int64      `dynamodbav:"credit_limit_override,omitempty"`
	CreatedAt           time.Time   `dynamodbav:"created_at"`
}

// Customer maps a phone number to the stable customer id shared by all of its relations.
type Customer struct {
	Phone      string    `dynamodbav:"customer_phone"`
	CustomerID string    `dynamodbav:"customer_id"`
	Name       string    `dynamodbav:"name"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

// Challenge is a pending one-time code for a phone number.
type Challenge struct {
	Phone     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Attempts  int
}
