// Package reconciliation computes period balances against bank-reported
// closing balances, flags duplicate transactions and keeps the manual
// match override history.
package reconciliation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
	"github.com/Smashkat12/crechebooks-sub018/internal/repository"
)

type Service struct {
	db     *gorm.DB
	txRepo *repository.TransactionRepository
	log    *zap.Logger
}

func NewService(db *gorm.DB, txRepo *repository.TransactionRepository, log *zap.Logger) *Service {
	return &Service{db: db, txRepo: txRepo, log: log}
}

// Reconcile compares the computed book balance of one account period
// with the statement's closing balance and persists a run record. A
// clean run marks the period's transactions reconciled; a nonzero
// discrepancy leaves the run in DISCREPANCY until addressed.
func (s *Service) Reconcile(ctx context.Context, tenantID uuid.UUID, accountID string, periodStart, periodEnd time.Time, openingCents, closingCents int64) (*models.ReconciliationRun, error) {
	if periodEnd.Before(periodStart) {
		return nil, apperr.NewValidation("period_end", periodEnd.Format("2006-01-02"),
			"period end precedes period start")
	}

	txs, err := s.txRepo.ListPeriod(tenantID, accountID, periodStart, periodEnd)
	if err != nil {
		s.log.Error("reconciliation failed to load period transactions",
			zap.String("tenant_id", tenantID.String()),
			zap.String("account_id", accountID),
			zap.Error(err))
		return nil, err
	}

	var credits, debits int64
	matched, unmatched := 0, 0
	for _, tx := range txs {
		if tx.IsCredit {
			credits += tx.AmountCents
		} else {
			debits += tx.AmountCents
		}
		switch tx.Status {
		case models.TxStatusMatched, models.TxStatusAutoApplied:
			matched++
		default:
			unmatched++
		}
	}

	calculated := openingCents + credits - debits
	discrepancy := closingCents - calculated

	status := models.ReconStatusReconciled
	if discrepancy != 0 {
		status = models.ReconStatusDiscrepancy
	}

	run := &models.ReconciliationRun{
		ID:                     uuid.New(),
		TenantID:               tenantID,
		AccountID:              accountID,
		PeriodStart:            periodStart,
		PeriodEnd:              periodEnd,
		OpeningBalanceCents:    openingCents,
		ClosingBalanceCents:    closingCents,
		CalculatedBalanceCents: calculated,
		DiscrepancyCents:       discrepancy,
		MatchedCount:           matched,
		UnmatchedCount:         unmatched,
		Status:                 status,
		CreatedAt:              time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(run).Error; err != nil {
			return err
		}
		if status != models.ReconStatusReconciled || len(txs) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(txs))
		for _, tx := range txs {
			ids = append(ids, tx.ID)
		}
		return dbtx.Model(&models.Transaction{}).
			Where("id IN ?", ids).
			Update("is_reconciled", true).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reconciliation run recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID),
		zap.Int64("discrepancy_cents", discrepancy),
		zap.String("status", status))
	return run, nil
}

// DetectDuplicates flags transactions sharing a composite key of date,
// amount and normalized description. The key deliberately ignores the
// account: exact same-account copies are already blocked by the import
// dedup index, so what this scan catches is the same bank line landing
// in two of the tenant's accounts. An accountID narrows the scan.
// Flagged rows are never removed automatically; a human resolves each
// key through ResolveDuplicate, after which the key is not re-flagged.
func (s *Service) DetectDuplicates(ctx context.Context, tenantID uuid.UUID, accountID string) ([]models.DuplicateResolution, error) {
	query := s.db.WithContext(ctx).
		Where("tenant_id = ? AND is_deleted = ?", tenantID, false)
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	var txs []models.Transaction
	if err := query.Order("transaction_date ASC").Find(&txs).Error; err != nil {
		return nil, err
	}

	byKey := make(map[string][]models.Transaction)
	for _, tx := range txs {
		key := compositeKey(tx)
		byKey[key] = append(byKey[key], tx)
	}

	var flagged []models.DuplicateResolution
	for key, group := range byKey {
		if len(group) < 2 {
			continue
		}

		resolution, err := s.ensureResolutionRow(ctx, tenantID, key)
		if err != nil {
			return nil, err
		}
		// A key the operator already resolved stays settled.
		if resolution == nil {
			continue
		}

		for _, tx := range group {
			if tx.DuplicateFlag == models.DuplicateNone {
				err := s.db.WithContext(ctx).Model(&models.Transaction{}).
					Where("id = ?", tx.ID).
					Update("duplicate_flag", models.DuplicateFlagged).Error
				if err != nil {
					return nil, err
				}
			}
		}
		flagged = append(flagged, *resolution)
	}

	s.log.Info("duplicate detection completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID),
		zap.Int("flagged_keys", len(flagged)))
	return flagged, nil
}

// compositeKey hashes date, amount and normalized description. Unlike
// the import dedup hash the account is left out.
func compositeKey(tx models.Transaction) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(tx.Description), " "))
	payload := fmt.Sprintf("%s|%d|%s",
		tx.TransactionDate.UTC().Format("2006-01-02"), tx.AmountCents, normalized)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ensureResolutionRow finds or creates the tracking row for a duplicate
// key. A nil row with no error means the key has already been resolved
// and detection should leave it alone.
func (s *Service) ensureResolutionRow(ctx context.Context, tenantID uuid.UUID, key string) (*models.DuplicateResolution, error) {
	var existing models.DuplicateResolution
	err := s.db.WithContext(ctx).
		First(&existing, "tenant_id = ? AND composite_key = ?", tenantID, key).Error
	if err == nil {
		if existing.Status == models.DuplicateResolved {
			return nil, nil
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row := models.DuplicateResolution{
		ID:           uuid.New(),
		TenantID:     tenantID,
		CompositeKey: key,
		Status:       models.DuplicateFlagged,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListFlaggedDuplicates returns unresolved duplicate keys for a tenant.
func (s *Service) ListFlaggedDuplicates(ctx context.Context, tenantID uuid.UUID) ([]models.DuplicateResolution, error) {
	var rows []models.DuplicateResolution
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, models.DuplicateFlagged).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ResolveDuplicate records the operator decision for one flagged key.
func (s *Service) ResolveDuplicate(ctx context.Context, tenantID uuid.UUID, compositeKey, resolution, actor, notes string) (*models.DuplicateResolution, error) {
	if resolution != models.ResolutionDuplicate && resolution != models.ResolutionLegitimate {
		return nil, apperr.NewValidation("resolution", resolution, "must be duplicate or legitimate")
	}

	var row models.DuplicateResolution
	err := s.db.WithContext(ctx).
		First(&row, "tenant_id = ? AND composite_key = ?", tenantID, compositeKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("duplicate resolution", compositeKey)
	}
	if err != nil {
		return nil, err
	}
	if row.Status == models.DuplicateResolved {
		return nil, apperr.NewConflict("duplicate " + compositeKey + " is already resolved")
	}

	now := time.Now().UTC()
	row.Status = models.DuplicateResolved
	row.Resolution = resolution
	row.ResolvedBy = actor
	row.Notes = notes
	row.ResolvedAt = &now
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}

	s.log.Info("duplicate resolved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("composite_key", compositeKey),
		zap.String("resolution", resolution),
		zap.String("actor", actor))
	return &row, nil
}

// OverrideMatch records a manual match correction in the append-only
// history. The transaction's current allocation is not touched here;
// allocation changes go through the allocation service.
func (s *Service) OverrideMatch(ctx context.Context, tenantID, transactionID uuid.UUID, previousInvoiceID, newInvoiceID *uuid.UUID, actor, reason string) (*models.ManualMatchHistory, error) {
	if _, err := s.txRepo.GetByID(tenantID, transactionID); err != nil {
		return nil, err
	}

	entry := models.ManualMatchHistory{
		ID:                uuid.New(),
		TenantID:          tenantID,
		TransactionID:     transactionID,
		PreviousInvoiceID: previousInvoiceID,
		NewInvoiceID:      newInvoiceID,
		Action:            models.MatchActionMatch,
		Actor:             actor,
		Reason:            reason,
		CreatedAt:         time.Now().UTC(),
	}
	if newInvoiceID == nil {
		entry.Action = models.MatchActionUnmatch
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// UndoLastOverride replays the inverse of the most recent non-undo
// override for a transaction and appends the undo to the history.
func (s *Service) UndoLastOverride(ctx context.Context, tenantID, transactionID uuid.UUID, actor string) (*models.ManualMatchHistory, error) {
	var last models.ManualMatchHistory
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_id = ?", tenantID, transactionID).
		Order("created_at DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("match override", transactionID.String())
	}
	if err != nil {
		return nil, err
	}
	if last.Action == models.MatchActionUndo {
		return nil, apperr.NewConflict("most recent override for transaction " +
			transactionID.String() + " is already undone")
	}

	undo := models.ManualMatchHistory{
		ID:            uuid.New(),
		TenantID:      tenantID,
		TransactionID: transactionID,
		// The inverse: what was new becomes previous and vice versa.
		PreviousInvoiceID: last.NewInvoiceID,
		NewInvoiceID:      last.PreviousInvoiceID,
		Action:            models.MatchActionUndo,
		Actor:             actor,
		Reason:            "undo of " + last.ID.String(),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&undo).Error; err != nil {
		return nil, err
	}

	s.log.Info("match override undone",
		zap.String("tenant_id", tenantID.String()),
		zap.String("transaction_id", transactionID.String()),
		zap.String("undone_entry", last.ID.String()))
	return &undo, nil
}
