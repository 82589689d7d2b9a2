// Package repository provides tenant-scoped data access. Every query
// filters by tenant id at this boundary; a row owned by another tenant
// is indistinguishable from a missing one.
package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *TransactionRepository) GetByID(tenantID, id uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.First(&tx, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("transaction", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// HashExists reports whether a dedup hash is already persisted for the
// tenant and account.
func (r *TransactionRepository) HashExists(tenantID uuid.UUID, accountID, hash string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).
		Where("tenant_id = ? AND account_id = ? AND dedup_hash = ?", tenantID, accountID, hash).
		Count(&count).Error
	return count > 0, err
}

// ListUnprocessedCredits returns credits awaiting their first matching
// pass. When ids is non-empty only those transactions are considered.
// Auto-applied, review-required and no-match are terminal for the
// engine; only an operator allocation moves those on.
func (r *TransactionRepository) ListUnprocessedCredits(tenantID uuid.UUID, ids []uuid.UUID) ([]models.Transaction, error) {
	query := r.db.
		Where("tenant_id = ? AND is_credit = ? AND is_deleted = ?", tenantID, true, false).
		Where("status = ?", models.TxStatusUnprocessed).
		Order("transaction_date ASC")
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var txs []models.Transaction
	err := query.Find(&txs).Error
	return txs, err
}

// ListPeriod returns non-deleted transactions for an account inside a
// closed date interval.
func (r *TransactionRepository) ListPeriod(tenantID uuid.UUID, accountID string, start, end time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.
		Where("tenant_id = ? AND account_id = ? AND is_deleted = ?", tenantID, accountID, false).
		Where("transaction_date >= ? AND transaction_date <= ?", start, end).
		Order("transaction_date ASC").
		Find(&txs).Error
	return txs, err
}

// ListAccount returns all non-deleted transactions for an account.
func (r *TransactionRepository) ListAccount(tenantID uuid.UUID, accountID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.
		Where("tenant_id = ? AND account_id = ? AND is_deleted = ?", tenantID, accountID, false).
		Order("transaction_date ASC, created_at ASC").
		Find(&txs).Error
	return txs, err
}

// List returns a tenant's transactions with limit+1 cursor pagination
// and an optional status filter.
func (r *TransactionRepository) List(tenantID uuid.UUID, status, cursor string, limit int) ([]models.Transaction, string, bool, error) {
	query := r.db.
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Limit(limit + 1)
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}

	var txs []models.Transaction
	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	nextCursor := ""
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}
	return txs, nextCursor, hasMore, nil
}

func (r *TransactionRepository) Save(tx *models.Transaction) error {
	return r.db.Save(tx).Error
}
