package websockets

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	// MessageTypeCreditUpdate is for messages that report a change in a relation's available credit.
	MessageTypeCreditUpdate MessageType = "creditUpdate"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// CreditUpdatePayload is the payload for a creditUpdate message.
type CreditUpdatePayload struct {
	CustomerID      string `json:"customer_id"`
	VendorID        string `json:"vendor_id"`
	TransactionID   string `json:"transaction_id"`
	Change          int64  `json:"change"`
	AvailableCredit int64  `json:"available_credit"`
	TrustScore      int    `json:"trust_score"`
}
