package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Smashkat12/crechebooks-sub018/internal/services/importer"
)

// Import accepts a multipart statement upload and runs the pipeline.
func (h *Handler) Import(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	accountID := c.PostForm("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account_id is required"})
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}

	opts := importer.Options{
		Format:         c.DefaultPostForm("format", "auto"),
		DryRun:         c.PostForm("dry_run") == "true",
		SkipDuplicates: c.DefaultPostForm("skip_duplicates", "true") == "true",
	}

	result, err := h.importer.Import(c.Request.Context(), tenant, accountID, data, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListTransactions returns a tenant's transactions with cursor paging.
func (h *Handler) ListTransactions(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	limit := 50
	txs, nextCursor, hasMore, err := h.txRepo.List(tenant, c.Query("status"), c.Query("cursor"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       txs,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}
