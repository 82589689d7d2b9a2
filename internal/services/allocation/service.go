// Package allocation splits a transaction's amount across invoices and
// reverses payments. Every mutation runs in one database transaction and
// appends immutable audit entries.
package allocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/config"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
)

// Line is one requested allocation of cents to an invoice.
type Line struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
}

// Result reports a completed allocation.
type Result struct {
	Payments         []models.Payment `json:"payments"`
	InvoicesUpdated  []models.Invoice `json:"invoices_updated"`
	UnallocatedCents int64            `json:"unallocated_amount_cents"`
}

// ReversalResult reports a completed reversal.
type ReversalResult struct {
	Payment models.Payment `json:"payment"`
	Invoice models.Invoice `json:"invoice"`
}

type Service struct {
	db     *gorm.DB
	policy config.AllocationPolicy
	log    *zap.Logger
}

func NewService(db *gorm.DB, policy config.AllocationPolicy, log *zap.Logger) *Service {
	return &Service{db: db, policy: policy, log: log}
}

// Allocate creates one payment per line against a credit transaction.
// The whole set applies atomically or not at all. Concurrent allocations
// against the same invoice serialize on the invoice row lock.
func (s *Service) Allocate(ctx context.Context, tenantID, transactionID uuid.UUID, lines []Line, actor, matchType, matchedBy string, confidence int) (*Result, error) {
	if len(lines) == 0 {
		return nil, apperr.NewValidation("allocations", "", "at least one allocation line is required")
	}
	var total int64
	for _, line := range lines {
		if line.AmountCents <= 0 {
			return nil, apperr.NewValidation("allocations.amount_cents",
				fmt.Sprintf("%d", line.AmountCents), "must be positive")
		}
		total += line.AmountCents
	}

	result := &Result{}
	err := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		var tx models.Transaction
		err := lockForUpdate(dbtx).
			First(&tx, "tenant_id = ? AND id = ? AND is_deleted = ?", tenantID, transactionID, false).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NewNotFound("transaction", transactionID.String())
		}
		if err != nil {
			return err
		}
		if !tx.IsCredit {
			return apperr.NewBusiness(apperr.CodeNotACredit,
				"payments can only be allocated from credit transactions")
		}

		allocated, err := activeSum(dbtx, tenantID, transactionID)
		if err != nil {
			return err
		}
		remaining := tx.AmountCents - allocated
		if total > remaining {
			return apperr.NewBusiness(apperr.CodeExceedsRemaining, fmt.Sprintf(
				"requested %d cents but only %d remain unallocated", total, remaining))
		}

		now := time.Now().UTC()
		for _, line := range lines {
			var invoice models.Invoice
			err := lockForUpdate(dbtx).
				First(&invoice, "tenant_id = ? AND id = ?", tenantID, line.InvoiceID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NewNotFound("invoice", line.InvoiceID.String())
			}
			if err != nil {
				return err
			}

			if line.AmountCents > invoice.OutstandingCents() && s.policy == config.AllocationReject {
				return apperr.NewBusiness(apperr.CodeExceedsInvoiceBalance, fmt.Sprintf(
					"allocation of %d cents exceeds outstanding balance %d on invoice %s",
					line.AmountCents, invoice.OutstandingCents(), invoice.InvoiceNumber))
			}

			before := invoice

			payment := models.Payment{
				ID:              uuid.New(),
				TenantID:        tenantID,
				TransactionID:   &tx.ID,
				InvoiceID:       invoice.ID,
				AmountCents:     line.AmountCents,
				MatchType:       matchType,
				MatchedBy:       matchedBy,
				ConfidenceScore: confidence,
				CreatedAt:       now,
			}
			if err := dbtx.Create(&payment).Error; err != nil {
				return err
			}

			// Under the credit policy AmountPaid may exceed Total; the
			// surplus is a standing credit on the invoice.
			invoice.AmountPaidCents += line.AmountCents
			invoice.Status = deriveInvoiceStatus(invoice.AmountPaidCents, invoice.TotalCents)
			if err := dbtx.Save(&invoice).Error; err != nil {
				return err
			}

			if err := appendAudit(dbtx, tenantID, "payment", payment.ID, "allocate", nil, payment, actor); err != nil {
				return err
			}
			if err := appendAudit(dbtx, tenantID, "invoice", invoice.ID, "allocate", before, invoice, actor); err != nil {
				return err
			}

			result.Payments = append(result.Payments, payment)
			result.InvoicesUpdated = append(result.InvoicesUpdated, invoice)
		}

		result.UnallocatedCents = remaining - total
		if result.UnallocatedCents == 0 {
			tx.Status = models.TxStatusMatched
			if err := dbtx.Save(&tx).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("allocation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("transaction_id", transactionID.String()),
			zap.Int("lines", len(lines)),
			zap.Int64("requested_cents", total),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("allocation applied",
		zap.String("tenant_id", tenantID.String()),
		zap.String("transaction_id", transactionID.String()),
		zap.Int("payments", len(result.Payments)),
		zap.Int64("unallocated_cents", result.UnallocatedCents))
	return result, nil
}

// Reverse cancels a payment without deleting it. The payment keeps its
// row forever; dependent invoice state is recomputed from the remaining
// active payments.
func (s *Service) Reverse(ctx context.Context, tenantID, paymentID uuid.UUID, reason, actor string) (*ReversalResult, error) {
	if reason == "" {
		return nil, apperr.NewValidation("reason", "", "a reversal reason is required")
	}

	result := &ReversalResult{}
	err := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		var payment models.Payment
		err := lockForUpdate(dbtx).
			First(&payment, "tenant_id = ? AND id = ?", tenantID, paymentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NewNotFound("payment", paymentID.String())
		}
		if err != nil {
			return err
		}
		if payment.IsReversed {
			return apperr.NewConflict("payment " + paymentID.String() + " is already reversed")
		}

		beforePayment := payment
		now := time.Now().UTC()
		payment.IsReversed = true
		payment.ReversedAt = &now
		payment.ReversalReason = reason
		if err := dbtx.Save(&payment).Error; err != nil {
			return err
		}

		var invoice models.Invoice
		err = lockForUpdate(dbtx).
			First(&invoice, "tenant_id = ? AND id = ?", tenantID, payment.InvoiceID).Error
		if err != nil {
			return err
		}
		beforeInvoice := invoice

		paid, err := activeSumInvoice(dbtx, tenantID, invoice.ID)
		if err != nil {
			return err
		}
		invoice.AmountPaidCents = paid
		invoice.Status = deriveInvoiceStatus(paid, invoice.TotalCents)
		if err := dbtx.Save(&invoice).Error; err != nil {
			return err
		}

		if err := appendAudit(dbtx, tenantID, "payment", payment.ID, "reverse", beforePayment, payment, actor); err != nil {
			return err
		}
		if err := appendAudit(dbtx, tenantID, "invoice", invoice.ID, "reverse", beforeInvoice, invoice, actor); err != nil {
			return err
		}

		result.Payment = payment
		result.Invoice = invoice
		return nil
	})
	if err != nil {
		s.log.Error("reversal failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("payment_id", paymentID.String()),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("payment reversed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.String("reason", reason))
	return result, nil
}

func deriveInvoiceStatus(paidCents, totalCents int64) string {
	switch {
	case paidCents >= totalCents:
		return models.InvoiceStatusPaid
	case paidCents > 0:
		return models.InvoiceStatusPartiallyPaid
	default:
		return models.InvoiceStatusSent
	}
}

// lockForUpdate adds SELECT ... FOR UPDATE on Postgres. SQLite, used in
// tests, has no row locks; its single-writer model serializes anyway.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func activeSum(db *gorm.DB, tenantID, transactionID uuid.UUID) (int64, error) {
	var sum int64
	err := db.Model(&models.Payment{}).
		Where("tenant_id = ? AND transaction_id = ? AND is_reversed = ?", tenantID, transactionID, false).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&sum).Error
	return sum, err
}

func activeSumInvoice(db *gorm.DB, tenantID, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	err := db.Model(&models.Payment{}).
		Where("tenant_id = ? AND invoice_id = ? AND is_reversed = ?", tenantID, invoiceID, false).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&sum).Error
	return sum, err
}

func appendAudit(db *gorm.DB, tenantID uuid.UUID, entityType string, entityID uuid.UUID, action string, before, after any, actor string) error {
	entry := models.AuditLog{
		ID:         uuid.New(),
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		CreatedAt:  time.Now().UTC(),
	}
	if before != nil {
		b, err := json.Marshal(before)
		if err != nil {
			return err
		}
		entry.Before = b
	}
	if after != nil {
		a, err := json.Marshal(after)
		if err != nil {
			return err
		}
		entry.After = a
	}
	return db.Create(&entry).Error
}
