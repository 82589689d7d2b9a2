package models

import (
	"time"

	"github.com/google/uuid"
)

// Reconciliation run outcomes.
const (
	ReconStatusReconciled  = "RECONCILED"
	ReconStatusDiscrepancy = "DISCREPANCY"
)

// ReconciliationRun records one reconciliation of an account period
// against a bank-reported closing balance.
type ReconciliationRun struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID               uuid.UUID `gorm:"type:uuid;index"`
	AccountID              string    `gorm:"index"`
	PeriodStart            time.Time
	PeriodEnd              time.Time
	OpeningBalanceCents    int64
	ClosingBalanceCents    int64
	CalculatedBalanceCents int64
	DiscrepancyCents       int64
	MatchedCount           int
	UnmatchedCount         int
	Status                 string `gorm:"index"`
	CreatedAt              time.Time
}

// Duplicate resolution outcomes.
const (
	ResolutionDuplicate  = "duplicate"
	ResolutionLegitimate = "legitimate"
)

// DuplicateResolution tracks the operator decision for one flagged
// duplicate composite key within a tenant.
type DuplicateResolution struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_dup_key"`
	CompositeKey string    `gorm:"uniqueIndex:idx_dup_key"`
	Status       string    `gorm:"index"`
	Resolution   string
	ResolvedBy   string
	Notes        string
	ResolvedAt   *time.Time
	CreatedAt    time.Time
}

// Manual match history actions.
const (
	MatchActionMatch   = "match"
	MatchActionUnmatch = "unmatch"
	MatchActionUndo    = "undo"
)

// ManualMatchHistory is the append-only log of operator match overrides.
// Undo works by replaying the inverse of the most recent entry.
type ManualMatchHistory struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID  `gorm:"type:uuid;index"`
	TransactionID     uuid.UUID  `gorm:"type:uuid;index"`
	PreviousInvoiceID *uuid.UUID `gorm:"type:uuid"`
	NewInvoiceID      *uuid.UUID `gorm:"type:uuid"`
	Action            string
	Actor             string
	Reason            string
	CreatedAt         time.Time
}
