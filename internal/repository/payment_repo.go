package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetByID(tenantID, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.First(&payment, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("payment", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ActiveSumByTransaction returns the total of non-reversed payments
// allocated from one transaction.
func (r *PaymentRepository) ActiveSumByTransaction(tenantID, transactionID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.Model(&models.Payment{}).
		Where("tenant_id = ? AND transaction_id = ? AND is_reversed = ?", tenantID, transactionID, false).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&sum).Error
	return sum, err
}

// ActiveSumByInvoice returns the total of non-reversed payments applied
// to one invoice. Invoice.AmountPaidCents must always equal this value.
func (r *PaymentRepository) ActiveSumByInvoice(tenantID, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.Model(&models.Payment{}).
		Where("tenant_id = ? AND invoice_id = ? AND is_reversed = ?", tenantID, invoiceID, false).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *PaymentRepository) ListByTransaction(tenantID, transactionID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.
		Where("tenant_id = ? AND transaction_id = ?", tenantID, transactionID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}
