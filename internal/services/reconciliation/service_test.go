package reconciliation

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
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
	"github.com/Smashkat12/crechebooks-sub018/internal/repository"
	"github.com/Smashkat12/crechebooks-sub018/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	svc      *Service
	tenantID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	return &fixture{
		db:       db,
		svc:      NewService(db, repository.NewTransactionRepository(db), zap.NewNop()),
		tenantID: uuid.New(),
	}
}

func (f *fixture) seedTx(t *testing.T, accountID string, date time.Time, amountCents int64, isCredit bool, status, hash string) *models.Transaction {
	t.Helper()
	if hash == "" {
		hash = uuid.NewString()
	}
	tx := models.Transaction{
		ID:              uuid.New(),
		TenantID:        f.tenantID,
		AccountID:       accountID,
		TransactionDate: date,
		Description:     "EFT Payment N Dlamini",
		AmountCents:     amountCents,
		IsCredit:        isCredit,
		DedupHash:       hash,
		Status:          status,
	}
	require.NoError(t, f.db.Create(&tx).Error)
	return &tx
}

func TestReconcileBalancedPeriod(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC)
	credit := f.seedTx(t, "acc-1", start, 500, true, models.TxStatusMatched, "")
	debit := f.seedTx(t, "acc-1", start.AddDate(0, 0, 1), 200, false, models.TxStatusUnprocessed, "")

	run, err := f.svc.Reconcile(context.Background(), f.tenantID, "acc-1", start, end, 1000, 1300)
	require.NoError(t, err)
	assert.Equal(t, models.ReconStatusReconciled, run.Status)
	assert.Equal(t, int64(1300), run.CalculatedBalanceCents)
	assert.Equal(t, int64(0), run.DiscrepancyCents)
	assert.Equal(t, 1, run.MatchedCount)
	assert.Equal(t, 1, run.UnmatchedCount)

	var stored models.ReconciliationRun
	require.NoError(t, f.db.First(&stored, "id = ?", run.ID).Error)
	assert.Equal(t, models.ReconStatusReconciled, stored.Status)

	// A clean run marks the whole period reconciled.
	for _, id := range []uuid.UUID{credit.ID, debit.ID} {
		var tx models.Transaction
		require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
		assert.True(t, tx.IsReconciled)
	}
}

func TestReconcileDiscrepancy(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC)
	credit := f.seedTx(t, "acc-1", start, 500, true, models.TxStatusMatched, "")

	run, err := f.svc.Reconcile(context.Background(), f.tenantID, "acc-1", start, end, 1000, 1450)
	require.NoError(t, err)
	assert.Equal(t, models.ReconStatusDiscrepancy, run.Status)
	assert.Equal(t, int64(-50), run.DiscrepancyCents, "calculated 1500, bank says 1450")

	// Transactions stay unreconciled until the discrepancy is cleared.
	var tx models.Transaction
	require.NoError(t, f.db.First(&tx, "id = ?", credit.ID).Error)
	assert.False(t, tx.IsReconciled)
}

func TestReconcileIgnoresOtherAccountsAndPeriods(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC)
	f.seedTx(t, "acc-1", start, 500, true, models.TxStatusMatched, "")
	f.seedTx(t, "acc-2", start, 99999, true, models.TxStatusMatched, "")
	f.seedTx(t, "acc-1", end.AddDate(0, 0, 1), 99999, true, models.TxStatusMatched, "")

	run, err := f.svc.Reconcile(context.Background(), f.tenantID, "acc-1", start, end, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, models.ReconStatusReconciled, run.Status)
}

func TestReconcileRejectsInvertedPeriod(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.svc.Reconcile(context.Background(), f.tenantID, "acc-1", start, end, 0, 0)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestDetectDuplicates(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	// The same bank line imported into two accounts: same date, amount
	// and description, distinct dedup hashes.
	a := f.seedTx(t, "acc-1", date, 500, true, models.TxStatusUnprocessed, "")
	b := f.seedTx(t, "acc-2", date, 500, true, models.TxStatusUnprocessed, "")
	c := f.seedTx(t, "acc-1", date, 750, true, models.TxStatusUnprocessed, "")

	flagged, err := f.svc.DetectDuplicates(context.Background(), f.tenantID, "")
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, models.DuplicateFlagged, flagged[0].Status)
	assert.NotEmpty(t, flagged[0].CompositeKey)

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		var tx models.Transaction
		require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
		assert.Equal(t, models.DuplicateFlagged, tx.DuplicateFlag)
	}
	var untouched models.Transaction
	require.NoError(t, f.db.First(&untouched, "id = ?", c.ID).Error)
	assert.Equal(t, models.DuplicateNone, untouched.DuplicateFlag)

	// Narrowed to one account the pair never groups.
	flagged, err = f.svc.DetectDuplicates(context.Background(), f.tenantID, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, flagged)

	// Re-running must reuse the existing resolution row, not fail on the
	// unique key.
	flagged, err = f.svc.DetectDuplicates(context.Background(), f.tenantID, "")
	require.NoError(t, err)
	require.Len(t, flagged, 1)
}

func TestResolveDuplicate(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	f.seedTx(t, "acc-1", date, 500, true, models.TxStatusUnprocessed, "")
	f.seedTx(t, "acc-2", date, 500, true, models.TxStatusUnprocessed, "")
	_, err := f.svc.DetectDuplicates(context.Background(), f.tenantID, "")
	require.NoError(t, err)

	listed, err := f.svc.ListFlaggedDuplicates(context.Background(), f.tenantID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	key := listed[0].CompositeKey

	row, err := f.svc.ResolveDuplicate(context.Background(), f.tenantID, key,
		models.ResolutionLegitimate, "bursar@school", "two siblings, same fee")
	require.NoError(t, err)
	assert.Equal(t, models.DuplicateResolved, row.Status)
	assert.Equal(t, models.ResolutionLegitimate, row.Resolution)
	assert.Equal(t, "bursar@school", row.ResolvedBy)
	assert.NotNil(t, row.ResolvedAt)

	listed, err = f.svc.ListFlaggedDuplicates(context.Background(), f.tenantID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Resolving twice conflicts.
	_, err = f.svc.ResolveDuplicate(context.Background(), f.tenantID, key,
		models.ResolutionDuplicate, "bursar@school", "")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestDetectDuplicatesSkipsResolvedKeys(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	f.seedTx(t, "acc-1", date, 500, true, models.TxStatusUnprocessed, "")
	f.seedTx(t, "acc-2", date, 500, true, models.TxStatusUnprocessed, "")

	flagged, err := f.svc.DetectDuplicates(context.Background(), f.tenantID, "")
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	_, err = f.svc.ResolveDuplicate(context.Background(), f.tenantID, flagged[0].CompositeKey,
		models.ResolutionLegitimate, "bursar@school", "two siblings, same fee")
	require.NoError(t, err)

	// The operator's decision sticks: a later scan must not report the
	// settled key again.
	flagged, err = f.svc.DetectDuplicates(context.Background(), f.tenantID, "")
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestResolveDuplicateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ResolveDuplicate(context.Background(), f.tenantID, "key", "maybe", "bursar@school", "")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.ResolveDuplicate(context.Background(), f.tenantID, "missing",
		models.ResolutionDuplicate, "bursar@school", "")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestOverrideMatchAndUndo(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	tx := f.seedTx(t, "acc-1", date, 45000, true, models.TxStatusReviewRequired, "")
	prev := uuid.New()
	next := uuid.New()

	entry, err := f.svc.OverrideMatch(context.Background(), f.tenantID, tx.ID, &prev, &next,
		"bursar@school", "bank reference was reused")
	require.NoError(t, err)
	assert.Equal(t, models.MatchActionMatch, entry.Action)

	undo, err := f.svc.UndoLastOverride(context.Background(), f.tenantID, tx.ID, "bursar@school")
	require.NoError(t, err)
	assert.Equal(t, models.MatchActionUndo, undo.Action)
	require.NotNil(t, undo.PreviousInvoiceID)
	require.NotNil(t, undo.NewInvoiceID)
	assert.Equal(t, next, *undo.PreviousInvoiceID, "undo inverts the override")
	assert.Equal(t, prev, *undo.NewInvoiceID)

	// The history is append-only: both entries survive.
	var count int64
	require.NoError(t, f.db.Model(&models.ManualMatchHistory{}).
		Where("transaction_id = ?", tx.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// A second undo with nothing new to undo conflicts.
	_, err = f.svc.UndoLastOverride(context.Background(), f.tenantID, tx.ID, "bursar@school")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestOverrideMatchUnmatch(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)
	tx := f.seedTx(t, "acc-1", date, 45000, true, models.TxStatusMatched, "")
	prev := uuid.New()

	entry, err := f.svc.OverrideMatch(context.Background(), f.tenantID, tx.ID, &prev, nil,
		"bursar@school", "family disputes the payment")
	require.NoError(t, err)
	assert.Equal(t, models.MatchActionUnmatch, entry.Action)
}

func TestOverrideMatchUnknownTransaction(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.OverrideMatch(context.Background(), f.tenantID, uuid.New(), nil, nil,
		"bursar@school", "reason")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}
