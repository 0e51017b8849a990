package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementEntry is the durable dedup record written by the settlement
// worker. TransactionID is the primary key; a second insert for the same
// transaction is ignored.
type SettlementEntry struct {
	TransactionID string          `gorm:"column:transaction_id;primaryKey;type:varchar(64)" json:"transactionId"`
	RequestID     string          `gorm:"column:request_id;type:varchar(128);not null" json:"requestId"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,4);not null" json:"amount"`
	SettledAt     time.Time       `gorm:"column:settled_at;not null" json:"settledAt"`
}

func (SettlementEntry) TableName() string {
	return "settlements"
}

// NewSettlementEntry builds the dedup row for a settled payment. The ledger's
// settledAt wins; now is used only if the record carries none.
func NewSettlementEntry(p *Payment, now time.Time) *SettlementEntry {
	settledAt := now
	if p.SettledAt != nil {
		settledAt = *p.SettledAt
	}
	return &SettlementEntry{
		TransactionID: p.TransactionID,
		RequestID:     p.RequestID,
		Amount:        p.Amount,
		SettledAt:     settledAt.UTC(),
	}
}
