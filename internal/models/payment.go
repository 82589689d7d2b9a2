package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment match provenance.
const (
	MatchTypeManual = "MANUAL"
	MatchTypeAuto   = "AUTO"

	MatchedByUser   = "USER"
	MatchedBySystem = "SYSTEM"
)

// Payment allocates part of a transaction's amount to an invoice.
// TransactionID is nil for payments recorded without a bank line (manual
// receipts). Rows are append-mostly: after creation only the reversal
// fields ever change, and a reversed payment is retained forever.
type Payment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID  `gorm:"type:uuid;index"`
	TransactionID   *uuid.UUID `gorm:"type:uuid;index"`
	InvoiceID       uuid.UUID  `gorm:"type:uuid;index"`
	AmountCents     int64
	MatchType       string
	MatchedBy       string
	ConfidenceScore int
	IsReversed      bool `gorm:"index"`
	ReversedAt      *time.Time
	ReversalReason  string
	CreatedAt       time.Time
}
