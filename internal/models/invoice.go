package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses.
const (
	InvoiceStatusPending       = "pending"
	InvoiceStatusSent          = "sent"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusOverdue       = "overdue"
)

// Invoice is owned by the billing subsystem. This core only ever updates
// AmountPaidCents and Status; it never creates or deletes invoices.
type Invoice struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID `gorm:"type:uuid;index"`
	InvoiceNumber   string    `gorm:"index"`
	PayerName       string    `gorm:"index"`
	TotalCents      int64
	AmountPaidCents int64
	Status          string `gorm:"index"`
	DueDate         time.Time
	CreatedAt       time.Time
}

// OutstandingCents is the unpaid remainder, never negative.
func (i Invoice) OutstandingCents() int64 {
	if i.AmountPaidCents >= i.TotalCents {
		return 0
	}
	return i.TotalCents - i.AmountPaidCents
}
