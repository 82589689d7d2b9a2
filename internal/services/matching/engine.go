package matching

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/models"
	"github.com/Smashkat12/crechebooks-sub018/internal/repository"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/allocation"
)

const maxRetainedCandidates = 5

// Candidate is one scored invoice for a transaction. Candidates live
// only in the response and in MatchDetails; promoting one creates a
// Payment through the allocation service.
type Candidate struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	PayerName     string    `json:"payer_name"`
	Score         int       `json:"score"`
	Tier          string    `json:"tier"`
	Reasons       []string  `json:"reasons"`
}

// Detail reports the outcome for one transaction in a matching run.
type Detail struct {
	TransactionID uuid.UUID   `json:"transaction_id"`
	Status        string      `json:"status"`
	TopScore      int         `json:"top_score"`
	Candidates    []Candidate `json:"candidates,omitempty"`
}

// Result aggregates one matching run.
type Result struct {
	Processed      int      `json:"processed"`
	AutoApplied    int      `json:"auto_applied"`
	ReviewRequired int      `json:"review_required"`
	NoMatch        int      `json:"no_match"`
	Details        []Detail `json:"details"`
}

// Allocator applies an auto-matched payment atomically.
type Allocator interface {
	Allocate(ctx context.Context, tenantID, transactionID uuid.UUID, lines []allocation.Line, actor, matchType, matchedBy string, confidence int) (*allocation.Result, error)
}

type Engine struct {
	txRepo      *repository.TransactionRepository
	invoiceRepo *repository.InvoiceRepository
	paymentRepo *repository.PaymentRepository
	allocator   Allocator
	log         *zap.Logger
}

func NewEngine(txRepo *repository.TransactionRepository, invoiceRepo *repository.InvoiceRepository, paymentRepo *repository.PaymentRepository, allocator Allocator, log *zap.Logger) *Engine {
	return &Engine{
		txRepo:      txRepo,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		allocator:   allocator,
		log:         log,
	}
}

// MatchPayments runs matching over a tenant's unprocessed credits, or
// only over transactionIDs when given. Transactions are independent;
// the batch deliberately walks them sequentially because candidates read
// shared per-tenant invoice state.
func (e *Engine) MatchPayments(ctx context.Context, tenantID uuid.UUID, transactionIDs []uuid.UUID) (*Result, error) {
	txs, err := e.txRepo.ListUnprocessedCredits(tenantID, transactionIDs)
	if err != nil {
		e.log.Error("matching failed to load transactions",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, err
	}

	result := &Result{Details: []Detail{}}
	for i := range txs {
		tx := &txs[i]

		allocated, err := e.paymentRepo.ActiveSumByTransaction(tenantID, tx.ID)
		if err != nil {
			return nil, err
		}
		remaining := tx.AmountCents - allocated
		if remaining <= 0 {
			// Fully allocated already; re-running matching must not
			// double-allocate.
			continue
		}

		detail, err := e.matchOne(ctx, tenantID, tx, remaining)
		if err != nil {
			return nil, err
		}

		result.Processed++
		switch detail.Status {
		case models.TxStatusAutoApplied:
			result.AutoApplied++
		case models.TxStatusReviewRequired:
			result.ReviewRequired++
		case models.TxStatusNoMatch:
			result.NoMatch++
		}
		result.Details = append(result.Details, detail)
	}

	e.log.Info("matching run completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("auto_applied", result.AutoApplied),
		zap.Int("review_required", result.ReviewRequired),
		zap.Int("no_match", result.NoMatch))
	return result, nil
}

func (e *Engine) matchOne(ctx context.Context, tenantID uuid.UUID, tx *models.Transaction, remaining int64) (Detail, error) {
	invoices, err := e.invoiceRepo.ListOutstanding(tenantID)
	if err != nil {
		return Detail{}, err
	}

	candidates := e.rank(tx, invoices, remaining)
	if len(candidates) == 0 {
		tx.Status = models.TxStatusNoMatch
		if err := e.txRepo.Save(tx); err != nil {
			return Detail{}, err
		}
		return Detail{TransactionID: tx.ID, Status: tx.Status}, nil
	}

	top := candidates[0]
	unambiguous := len(candidates) == 1 || top.Score-candidates[1].Score > ambiguityDelta

	if top.Score >= autoApplyThreshold && unambiguous {
		return e.autoApply(ctx, tenantID, tx, top, remaining)
	}

	if len(candidates) > maxRetainedCandidates {
		candidates = candidates[:maxRetainedCandidates]
	}
	tx.Status = models.TxStatusReviewRequired
	if details, err := json.Marshal(map[string]any{
		"decision":   tx.Status,
		"top_score":  top.Score,
		"candidates": candidates,
	}); err == nil {
		tx.MatchDetails = details
	}
	if err := e.txRepo.Save(tx); err != nil {
		return Detail{}, err
	}
	return Detail{TransactionID: tx.ID, Status: tx.Status, TopScore: top.Score, Candidates: candidates}, nil
}

func (e *Engine) autoApply(ctx context.Context, tenantID uuid.UUID, tx *models.Transaction, top Candidate, remaining int64) (Detail, error) {
	invoice, err := e.invoiceRepo.GetByID(tenantID, top.InvoiceID)
	if err != nil {
		return Detail{}, err
	}

	amount := remaining
	if outstanding := invoice.OutstandingCents(); outstanding < amount {
		amount = outstanding
	}

	_, err = e.allocator.Allocate(ctx, tenantID, tx.ID,
		[]allocation.Line{{InvoiceID: top.InvoiceID, AmountCents: amount}},
		"system", models.MatchTypeAuto, models.MatchedBySystem, top.Score)
	if err != nil {
		// The candidate looked safe but allocation disagreed (e.g. a
		// concurrent payment landed first). Route to a human instead of
		// failing the batch.
		e.log.Warn("auto-apply allocation rejected, routing to review",
			zap.String("transaction_id", tx.ID.String()),
			zap.String("invoice_id", top.InvoiceID.String()),
			zap.Error(err))
		tx.Status = models.TxStatusReviewRequired
		if saveErr := e.txRepo.Save(tx); saveErr != nil {
			return Detail{}, saveErr
		}
		return Detail{TransactionID: tx.ID, Status: tx.Status, TopScore: top.Score, Candidates: []Candidate{top}}, nil
	}

	tx.Status = models.TxStatusAutoApplied
	if details, err := json.Marshal(map[string]any{
		"decision":        tx.Status,
		"invoice_id":      top.InvoiceID,
		"score":           top.Score,
		"tier":            top.Tier,
		"reasons":         top.Reasons,
		"allocated_cents": amount,
		"matched_at":      time.Now().UTC(),
	}); err == nil {
		tx.MatchDetails = details
	}
	if err := e.txRepo.Save(tx); err != nil {
		return Detail{}, err
	}
	return Detail{TransactionID: tx.ID, Status: tx.Status, TopScore: top.Score, Candidates: []Candidate{top}}, nil
}

// rank scores every outstanding invoice against the transaction and
// returns candidates ordered best first.
func (e *Engine) rank(tx *models.Transaction, invoices []models.Invoice, remaining int64) []Candidate {
	bankText := tx.Payee
	if bankText == "" {
		bankText = tx.Description
	}

	var out []Candidate
	for _, inv := range invoices {
		outstanding := inv.OutstandingCents()
		if outstanding <= 0 {
			continue
		}

		f := Features{
			ReferenceExact:  tx.Reference != "" && strings.EqualFold(tx.Reference, inv.InvoiceNumber),
			AmountExact:     remaining == outstanding,
			PayerSimilarity: PayerSimilarity(bankText, inv.PayerName),
			DueDaysDelta:    absDays(tx.TransactionDate, inv.DueDate),
		}
		f.AmountNear = !f.AmountExact && withinOnePercent(remaining, outstanding)

		score := Score(f)
		out = append(out, Candidate{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			PayerName:     inv.PayerName,
			Score:         score,
			Tier:          Tier(score),
			Reasons:       reasons(f),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func reasons(f Features) []string {
	var out []string
	if f.ReferenceExact {
		out = append(out, "exact reference match")
	}
	if f.AmountExact {
		out = append(out, "exact amount match")
	} else if f.AmountNear {
		out = append(out, "amount within 1% of outstanding balance")
	}
	if f.PayerSimilarity >= 0.8 {
		out = append(out, "payer name matches")
	} else if f.PayerSimilarity >= 0.5 {
		out = append(out, "payer name partially matches")
	}
	if f.DueDaysDelta <= 7 {
		out = append(out, "close to invoice due date")
	}
	return out
}

func withinOnePercent(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff*100 <= b
}

func absDays(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
