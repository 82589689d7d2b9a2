package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Smashkat12/crechebooks-sub018/internal/config"
	"github.com/Smashkat12/crechebooks-sub018/internal/extraction"
	handler "github.com/Smashkat12/crechebooks-sub018/internal/handlers"
	"github.com/Smashkat12/crechebooks-sub018/internal/repository"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/allocation"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/importer"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/matching"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/reconciliation"
	"github.com/Smashkat12/crechebooks-sub018/internal/statement"
)

// RegisterRoutes wires repositories, services and handlers onto the
// router.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, log *zap.Logger) {
	txRepo := repository.NewTransactionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	registry := statement.NewRegistry(log)
	extractor := extraction.NewClient(cfg.Extraction, log)

	importerSvc := importer.NewService(db, registry, extractor, txRepo, log)
	allocator := allocation.NewService(db, cfg.AllocationPolicy, log)
	matcher := matching.NewEngine(txRepo, invoiceRepo, paymentRepo, allocator, log)
	reconciler := reconciliation.NewService(db, txRepo, log)

	h := handler.New(importerSvc, matcher, allocator, reconciler, txRepo, log)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api.POST("/imports", h.Import)

	api.POST("/matching/run", h.MatchPayments)

	tx := api.Group("/transactions")
	tx.GET("", h.ListTransactions)
	tx.POST("/:id/allocate", h.AllocatePayment)
	tx.POST("/:id/match-override", h.OverrideMatch)
	tx.POST("/:id/match-override/undo", h.UndoOverride)

	api.POST("/payments/:id/reverse", h.ReversePayment)

	recon := api.Group("/reconciliation")
	recon.POST("/run", h.Reconcile)
	recon.POST("/duplicates/detect", h.DetectDuplicates)
	recon.GET("/duplicates", h.ListDuplicates)
	recon.POST("/duplicates/resolve", h.ResolveDuplicate)
}
