package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/config"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
	"github.com/Smashkat12/crechebooks-sub018/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	tenantID uuid.UUID
}

func newFixture(t *testing.T, policy config.AllocationPolicy) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	return &fixture{
		db:       db,
		svc:      NewService(db, policy, zap.NewNop()),
		tenantID: uuid.New(),
	}
}

func (f *fixture) seedCredit(t *testing.T, amountCents int64) *models.Transaction {
	t.Helper()
	tx := models.Transaction{
		ID:              uuid.New(),
		TenantID:        f.tenantID,
		AccountID:       "acc-1",
		TransactionDate: time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC),
		Description:     "EFT Payment N Dlamini",
		AmountCents:     amountCents,
		IsCredit:        true,
		DedupHash:       uuid.NewString(),
		Status:          models.TxStatusUnprocessed,
	}
	require.NoError(t, f.db.Create(&tx).Error)
	return &tx
}

func (f *fixture) seedInvoice(t *testing.T, totalCents int64) *models.Invoice {
	t.Helper()
	inv := models.Invoice{
		ID:            uuid.New(),
		TenantID:      f.tenantID,
		InvoiceNumber: "INV-" + uuid.NewString()[:8],
		PayerName:     "N Dlamini",
		TotalCents:    totalCents,
		Status:        models.InvoiceStatusSent,
		DueDate:       time.Date(2025, time.October, 5, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.db.Create(&inv).Error)
	return &inv
}

func (f *fixture) reloadInvoice(t *testing.T, id uuid.UUID) models.Invoice {
	t.Helper()
	var inv models.Invoice
	require.NoError(t, f.db.First(&inv, "id = ?", id).Error)
	return inv
}

func TestAllocateSplitsAcrossInvoices(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 100000)
	invA := f.seedInvoice(t, 60000)
	invB := f.seedInvoice(t, 50000)

	result, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: invA.ID, AmountCents: 60000}, {InvoiceID: invB.ID, AmountCents: 30000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)
	require.Len(t, result.Payments, 2)
	assert.Equal(t, int64(10000), result.UnallocatedCents)

	// Conservation: active payments plus the unallocated remainder equal
	// the transaction amount.
	var active int64
	require.NoError(t, f.db.Model(&models.Payment{}).
		Where("transaction_id = ? AND is_reversed = ?", tx.ID, false).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&active).Error)
	assert.Equal(t, tx.AmountCents, active+result.UnallocatedCents)

	assert.Equal(t, models.InvoiceStatusPaid, f.reloadInvoice(t, invA.ID).Status)
	gotB := f.reloadInvoice(t, invB.ID)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, gotB.Status)
	assert.Equal(t, int64(30000), gotB.AmountPaidCents)
}

func TestAllocateMarksTransactionMatchedWhenExhausted(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	inv := f.seedInvoice(t, 45000)

	result, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.UnallocatedCents)

	var got models.Transaction
	require.NoError(t, f.db.First(&got, "id = ?", tx.ID).Error)
	assert.Equal(t, models.TxStatusMatched, got.Status)
}

func TestAllocateRejectsDebit(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	inv := f.seedInvoice(t, 45000)
	tx := f.seedCredit(t, 45000)
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("id = ?", tx.ID).Update("is_credit", false).Error)

	_, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.Error(t, err)
	assert.True(t, apperr.IsBusiness(err, apperr.CodeNotACredit))
}

func TestAllocateRejectsOverAllocation(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	inv := f.seedInvoice(t, 100000)

	_, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 50000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.Error(t, err)
	assert.True(t, apperr.IsBusiness(err, apperr.CodeExceedsRemaining))

	// Nothing may survive a failed allocation.
	var count int64
	require.NoError(t, f.db.Model(&models.Payment{}).Where("transaction_id = ?", tx.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAllocateRejectsNonPositiveLine(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	inv := f.seedInvoice(t, 45000)

	_, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 0}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.Allocate(context.Background(), f.tenantID, tx.ID, nil,
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestAllocateOverpayPolicyReject(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 60000)
	inv := f.seedInvoice(t, 45000)

	_, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 60000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.Error(t, err)
	assert.True(t, apperr.IsBusiness(err, apperr.CodeExceedsInvoiceBalance))
}

func TestAllocateOverpayPolicyCredit(t *testing.T) {
	f := newFixture(t, config.AllocationCredit)
	tx := f.seedCredit(t, 60000)
	inv := f.seedInvoice(t, 45000)

	_, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 60000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)

	got := f.reloadInvoice(t, inv.ID)
	assert.Equal(t, int64(60000), got.AmountPaidCents, "surplus stays on the invoice as credit")
	assert.Equal(t, models.InvoiceStatusPaid, got.Status)
}

func TestAllocateCrossTenantLooksMissing(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	inv := f.seedInvoice(t, 45000)

	_, err := f.svc.Allocate(context.Background(), uuid.New(), tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAllocateWritesAuditTrail(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	inv := f.seedInvoice(t, 45000)

	result, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)

	var entries []models.AuditLog
	require.NoError(t, f.db.Where("tenant_id = ?", f.tenantID).Order("entity_type ASC").Find(&entries).Error)
	require.Len(t, entries, 2)

	assert.Equal(t, "invoice", entries[0].EntityType)
	assert.Equal(t, inv.ID, entries[0].EntityID)
	assert.NotEmpty(t, entries[0].Before)
	assert.NotEmpty(t, entries[0].After)

	assert.Equal(t, "payment", entries[1].EntityType)
	assert.Equal(t, result.Payments[0].ID, entries[1].EntityID)
	assert.Equal(t, "bursar@school", entries[1].Actor)
	assert.Empty(t, entries[1].Before, "a new payment has no prior state")
}

func TestReverseRestoresInvoice(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	inv := f.seedInvoice(t, 45000)

	result, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)
	paymentID := result.Payments[0].ID

	reversal, err := f.svc.Reverse(context.Background(), f.tenantID, paymentID, "allocated to wrong family", "bursar@school")
	require.NoError(t, err)
	assert.True(t, reversal.Payment.IsReversed)
	assert.NotNil(t, reversal.Payment.ReversedAt)
	assert.Equal(t, "allocated to wrong family", reversal.Payment.ReversalReason)

	got := f.reloadInvoice(t, inv.ID)
	assert.Equal(t, int64(0), got.AmountPaidCents)
	assert.Equal(t, models.InvoiceStatusSent, got.Status)

	// The payment row survives the reversal.
	var payment models.Payment
	require.NoError(t, f.db.First(&payment, "id = ?", paymentID).Error)
	assert.True(t, payment.IsReversed)
}

func TestReverseTwiceConflicts(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	inv := f.seedInvoice(t, 45000)

	result, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: inv.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)
	paymentID := result.Payments[0].ID

	_, err = f.svc.Reverse(context.Background(), f.tenantID, paymentID, "wrong family", "bursar@school")
	require.NoError(t, err)

	_, err = f.svc.Reverse(context.Background(), f.tenantID, paymentID, "again", "bursar@school")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestReverseRequiresReason(t *testing.T) {
	f := newFixture(t, config.AllocationReject)

	_, err := f.svc.Reverse(context.Background(), f.tenantID, uuid.New(), "", "bursar@school")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestReverseThenReallocate(t *testing.T) {
	f := newFixture(t, config.AllocationReject)
	tx := f.seedCredit(t, 45000)
	invA := f.seedInvoice(t, 45000)
	invB := f.seedInvoice(t, 45000)

	result, err := f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: invA.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)

	_, err = f.svc.Reverse(context.Background(), f.tenantID, result.Payments[0].ID, "wrong family", "bursar@school")
	require.NoError(t, err)

	// The reversed amount is unallocated again and can go to the right
	// invoice.
	_, err = f.svc.Allocate(context.Background(), f.tenantID, tx.ID,
		[]Line{{InvoiceID: invB.ID, AmountCents: 45000}},
		"bursar@school", models.MatchTypeManual, models.MatchedByUser, 100)
	require.NoError(t, err)

	assert.Equal(t, int64(45000), f.reloadInvoice(t, invB.ID).AmountPaidCents)
}
