package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Queued transaction statuses. SYNCED is terminal and never stored: a
// successful upload deletes the row. A failed attempt returns the row
// to PENDING with the error recorded.
const (
	TxStatusPending   = "PENDING"
	TxStatusInFlight  = "IN_FLIGHT"
	TxStatusSynced    = "SYNCED"
	TxStatusFailed    = "FAILED"
	TxStatusAbandoned = "ABANDONED"
)

// QueuedTransaction is a completed sale persisted locally before any
// upload attempt. PermanentFailures counts only permanent-class
// (validation) rejections; once it reaches the configured bound the row
// moves to ABANDONED and is excluded from automatic retries.
type QueuedTransaction struct {
	GUID              string    `gorm:"primaryKey;size:36" json:"guid"`
	Payload           string    `gorm:"type:text;not null" json:"payload"`
	Status            string    `gorm:"size:16;not null;index" json:"status"`
	Attempts          int       `gorm:"not null;default:0" json:"attempts"`
	PermanentFailures int       `gorm:"not null;default:0" json:"permanent_failures"`
	LastError         string    `gorm:"size:1024" json:"last_error"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (QueuedTransaction) TableName() string { return "queued_transaction" }

// Sale is the full payload snapshot of a completed sale: header, line
// items and payments. It is serialized into QueuedTransaction.Payload
// at completion time so later catalog edits cannot alter it.
type Sale struct {
	GUID        string          `json:"guid"`
	TerminalID  string          `json:"terminal_id"`
	CompletedAt time.Time       `json:"completed_at"`
	Items       []SaleItem      `json:"items" binding:"required,min=1"`
	Payments    []SalePayment   `json:"payments" binding:"required,min=1"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxTotal    decimal.Decimal `json:"tax_total"`
	Total       decimal.Decimal `json:"total"`
}

type SaleItem struct {
	ProductID string          `json:"product_id" binding:"required"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Extended  decimal.Decimal `json:"extended"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
}

type SalePayment struct {
	Method    string          `json:"method" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}
