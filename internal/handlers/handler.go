// Package handler exposes the pipeline over HTTP. Tenant and actor
// arrive as trusted headers set by the authenticating gateway; they are
// not re-validated here.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub018/internal/apperr"
	"github.com/Smashkat12/crechebooks-sub018/internal/repository"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/allocation"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/importer"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/matching"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/reconciliation"
)

const (
	headerTenant = "X-Tenant-ID"
	headerActor  = "X-Actor-ID"
)

type Handler struct {
	importer   *importer.Service
	matcher    *matching.Engine
	allocator  *allocation.Service
	reconciler *reconciliation.Service
	txRepo     *repository.TransactionRepository
	log        *zap.Logger
}

func New(importerSvc *importer.Service, matcher *matching.Engine, allocator *allocation.Service, reconciler *reconciliation.Service, txRepo *repository.TransactionRepository, log *zap.Logger) *Handler {
	return &Handler{
		importer:   importerSvc,
		matcher:    matcher,
		allocator:  allocator,
		reconciler: reconciler,
		txRepo:     txRepo,
		log:        log,
	}
}

func (h *Handler) tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetHeader(headerTenant))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid " + headerTenant + " header"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) actor(c *gin.Context) string {
	if actor := c.GetHeader(headerActor); actor != "" {
		return actor
	}
	return "system"
}

// respondError maps the error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsBusiness(err, ""):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case apperr.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
