package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/payflow/pkg/types"
)

func init() {
	// amounts travel as JSON numbers, matching what ledger clients send
	decimal.MarshalJSONWithoutQuotes = true
}

// Payment is one record in the ledger. Everything except Status, Message and
// SettledAt is fixed at creation.
type Payment struct {
	RequestID     string              `json:"requestId"`
	TransactionID string              `json:"transactionId"`
	UserID        string              `json:"userId"`
	MerchantID    string              `json:"merchantId"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	PaymentMethod string              `json:"paymentMethod"`
	Status        types.PaymentStatus `json:"status"`
	Message       string              `json:"message"`
	CreatedAt     time.Time           `json:"createdAt"`
	// SettledAt is set once, on the transition into SETTLED.
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

// Clone returns a copy that shares no memory with p.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	cp := *p
	if p.SettledAt != nil {
		t := *p.SettledAt
		cp.SettledAt = &t
	}
	return &cp
}

// CreatePaymentRequest is the client payload for a new payment. RequestID is
// the idempotency key.
type CreatePaymentRequest struct {
	RequestID     string          `json:"requestId" binding:"required"`
	UserID        string          `json:"userId"`
	MerchantID    string          `json:"merchantId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"paymentMethod"`
}

// TransitionResult is returned by every ledger transition. Applied is false
// when the call left the record untouched (already past the source state).
type TransitionResult struct {
	Payment *Payment `json:"payment"`
	Applied bool     `json:"applied"`
}
