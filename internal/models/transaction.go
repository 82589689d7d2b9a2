package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Transaction statuses produced by the matching engine.
const (
	TxStatusUnprocessed    = "unprocessed"
	TxStatusAutoApplied    = "auto_applied"
	TxStatusReviewRequired = "review_required"
	TxStatusNoMatch        = "no_match"
	TxStatusMatched        = "matched"
)

// Duplicate flag states.
const (
	DuplicateNone     = "none"
	DuplicateFlagged  = "flagged"
	DuplicateResolved = "resolved"
)

// Transaction is one bank line item. Rows are created by the import
// pipeline and never mutated afterwards except for status, duplicate and
// reconciliation flags. Once categorized a row is soft-deleted, never
// hard-deleted.
type Transaction struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_tx_dedup"`
	AccountID       string    `gorm:"uniqueIndex:idx_tx_dedup"`
	TransactionDate time.Time `gorm:"column:transaction_date;index"`
	Description     string
	Payee           string
	Reference       string
	AmountCents     int64  `gorm:"index"`
	IsCredit        bool
	DedupHash       string `gorm:"uniqueIndex:idx_tx_dedup"`
	Status          string `gorm:"index;default:unprocessed"`
	DuplicateFlag   string `gorm:"default:none"`
	IsReconciled    bool
	IsDeleted       bool `gorm:"index"`
	MatchDetails    datatypes.JSON
	CreatedAt       time.Time
}
