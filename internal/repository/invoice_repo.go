package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) GetByID(tenantID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.First(&invoice, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("invoice", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListOutstanding returns invoices with a nonzero unpaid balance, the
// candidate pool for payment matching.
func (r *InvoiceRepository) ListOutstanding(tenantID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.
		Where("tenant_id = ?", tenantID).
		Where("status NOT IN ?", []string{models.InvoiceStatusPaid}).
		Where("amount_paid_cents < total_cents").
		Order("due_date ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *InvoiceRepository) Save(invoice *models.Invoice) error {
	return r.db.Save(invoice).Error
}
