// Package importer runs the statement import pipeline: select a parser,
// escalate weak parses to the extraction fallback, deduplicate, persist.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/extraction"
	"github.com/Smashkat12/crechebooks-sub018/internal/models"
	"github.com/Smashkat12/crechebooks-sub018/internal/repository"
	"github.com/Smashkat12/crechebooks-sub018/internal/statement"
)

// Fallback escalation thresholds.
const (
	minAverageConfidence = 70
	minRecoveredCount    = 3
	// A document with at least this many content lines is expected to
	// hold more than a couple of transactions.
	substantialLineCount = 10
)

// Options controls one import invocation.
type Options struct {
	// Format names a recognizer directly; empty or "auto" uses detection.
	Format         string
	DryRun         bool
	SkipDuplicates bool
}

// Result reports the structured outcome of a batch import.
type Result struct {
	Imported     int                  `json:"imported"`
	Duplicates   int                  `json:"duplicates"`
	Errors       int                  `json:"errors"`
	Transactions []models.Transaction `json:"transactions"`
}

type Service struct {
	db        *gorm.DB
	registry  *statement.Registry
	extractor extraction.Extractor
	txRepo    *repository.TransactionRepository
	log       *zap.Logger
}

func NewService(db *gorm.DB, registry *statement.Registry, extractor extraction.Extractor, txRepo *repository.TransactionRepository, log *zap.Logger) *Service {
	return &Service{db: db, registry: registry, extractor: extractor, txRepo: txRepo, log: log}
}

// Import parses statement bytes for one tenant account and persists the
// recovered transactions. Per-record failures are counted, logged and
// skipped; the batch itself only fails on format detection, fallback or
// storage errors.
func (s *Service) Import(ctx context.Context, tenantID uuid.UUID, accountID string, data []byte, opts Options) (*Result, error) {
	text := string(data)

	rec, err := s.selectRecognizer(text, opts.Format)
	if err != nil {
		s.log.Error("import failed to select a parser",
			zap.String("tenant_id", tenantID.String()),
			zap.String("account_id", accountID),
			zap.String("format", opts.Format),
			zap.Error(err))
		return nil, err
	}

	parsed, err := rec.Parse(text)
	if err != nil {
		s.log.Error("statement parse failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("recognizer", rec.Name()),
			zap.Error(err))
		return nil, err
	}

	if s.needsFallback(parsed, text) {
		parsed, err = s.runFallback(ctx, data, parsed)
		if err != nil {
			s.log.Error("extraction fallback failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("account_id", accountID),
				zap.Error(err))
			return nil, err
		}
	}

	result := &Result{Transactions: []models.Transaction{}}
	seen := make(map[string]bool)

	for _, p := range parsed {
		if p.Date.IsZero() || p.AmountCents <= 0 {
			result.Errors++
			s.log.Warn("skipping invalid parsed transaction",
				zap.String("description", p.Description),
				zap.Int64("amount_cents", p.AmountCents))
			continue
		}

		hash := DedupHash(p.Date, p.AmountCents, p.Description, accountID)

		exists, err := s.txRepo.HashExists(tenantID, accountID, hash)
		if err != nil {
			return nil, err
		}
		if exists || seen[hash] {
			result.Duplicates++
			if !opts.SkipDuplicates && exists && !opts.DryRun {
				s.flagExistingDuplicate(tenantID, accountID, hash)
			}
			continue
		}
		seen[hash] = true

		tx := models.Transaction{
			ID:              uuid.New(),
			TenantID:        tenantID,
			AccountID:       accountID,
			TransactionDate: p.Date,
			Description:     p.Description,
			Payee:           p.Payee,
			Reference:       p.Reference,
			AmountCents:     p.AmountCents,
			IsCredit:        p.IsCredit,
			DedupHash:       hash,
			Status:          models.TxStatusUnprocessed,
			DuplicateFlag:   models.DuplicateNone,
			CreatedAt:       time.Now().UTC(),
		}

		if !opts.DryRun {
			if err := s.txRepo.Create(&tx); err != nil {
				result.Errors++
				s.log.Warn("failed to persist transaction, continuing batch",
					zap.String("dedup_hash", hash), zap.Error(err))
				continue
			}
		}
		result.Imported++
		result.Transactions = append(result.Transactions, tx)
	}

	s.log.Info("import completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID),
		zap.String("recognizer", rec.Name()),
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("imported", result.Imported),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors))
	return result, nil
}

func (s *Service) selectRecognizer(text, format string) (statement.Recognizer, error) {
	if format == "" || format == "auto" {
		return s.registry.Detect(text)
	}
	rec, ok := s.registry.Get(format)
	if !ok {
		return nil, apperr.NewBusiness(apperr.CodeUnsupportedFormat,
			fmt.Sprintf("unknown statement format %q", format))
	}
	return rec, nil
}

func (s *Service) needsFallback(parsed []statement.ParsedTransaction, text string) bool {
	if len(parsed) > 0 && statement.AverageConfidence(parsed) < minAverageConfidence {
		return true
	}
	return len(parsed) < minRecoveredCount && contentLines(text) >= substantialLineCount
}

// runFallback extracts text remotely and re-parses it with the
// structured multi-line grammar. The fallback result wins when it
// recovers more transactions or higher confidence than the local parse.
func (s *Service) runFallback(ctx context.Context, data []byte, local []statement.ParsedTransaction) ([]statement.ParsedTransaction, error) {
	extracted, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		return nil, err
	}

	structured := statement.NewStructuredRecognizer(s.log)
	remote, err := structured.Parse(extracted)
	if err != nil {
		return nil, err
	}

	s.log.Info("extraction fallback parsed document",
		zap.Int("local_count", len(local)),
		zap.Int("fallback_count", len(remote)))

	if len(remote) > len(local) ||
		(len(remote) > 0 && statement.AverageConfidence(remote) > statement.AverageConfidence(local)) {
		return remote, nil
	}
	return local, nil
}

// flagExistingDuplicate marks the already-persisted row so a human can
// resolve the duplicate; the incoming copy is never re-inserted.
func (s *Service) flagExistingDuplicate(tenantID uuid.UUID, accountID, hash string) {
	err := s.db.Model(&models.Transaction{}).
		Where("tenant_id = ? AND account_id = ? AND dedup_hash = ? AND duplicate_flag = ?",
			tenantID, accountID, hash, models.DuplicateNone).
		Update("duplicate_flag", models.DuplicateFlagged).Error
	if err != nil {
		s.log.Warn("failed to flag duplicate transaction",
			zap.String("dedup_hash", hash), zap.Error(err))
	}
}

// DedupHash derives the duplicate-detection key from date, amount,
// normalized description and account.
func DedupHash(date time.Time, amountCents int64, description, accountID string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(description), " "))
	payload := fmt.Sprintf("%s|%d|%s|%s",
		date.UTC().Format("2006-01-02"), amountCents, normalized, accountID)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func contentLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
