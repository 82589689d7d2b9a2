package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Smashkat12/crechebooks-sub018/internal/parser"
)

// Reconcile compares computed balances with the statement's closing
// balance for a period.
func (h *Handler) Reconcile(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		AccountID           string `json:"account_id" binding:"required"`
		PeriodStart         string `json:"period_start" binding:"required"`
		PeriodEnd           string `json:"period_end" binding:"required"`
		OpeningBalanceCents int64  `json:"opening_balance_cents"`
		ClosingBalanceCents int64  `json:"closing_balance_cents"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	start, err := parser.ParseDate(payload.PeriodStart)
	if err != nil {
		h.respondError(c, err)
		return
	}
	end, err := parser.ParseDate(payload.PeriodEnd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	run, err := h.reconciler.Reconcile(c.Request.Context(), tenant, payload.AccountID,
		start, end, payload.OpeningBalanceCents, payload.ClosingBalanceCents)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// DetectDuplicates flags duplicate transactions across the tenant's
// accounts, optionally narrowed to one account.
func (h *Handler) DetectDuplicates(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	flagged, err := h.reconciler.DetectDuplicates(c.Request.Context(), tenant, c.Query("account_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged})
}

// ListDuplicates returns unresolved duplicate keys.
func (h *Handler) ListDuplicates(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	rows, err := h.reconciler.ListFlaggedDuplicates(c.Request.Context(), tenant)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicates": rows})
}

// ResolveDuplicate records an operator decision for a flagged key.
func (h *Handler) ResolveDuplicate(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		CompositeKey string `json:"composite_key" binding:"required"`
		Resolution   string `json:"resolution" binding:"required"`
		Notes        string `json:"notes"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	row, err := h.reconciler.ResolveDuplicate(c.Request.Context(), tenant,
		payload.CompositeKey, payload.Resolution, h.actor(c), payload.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// OverrideMatch records a manual match correction for a transaction.
func (h *Handler) OverrideMatch(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	var payload struct {
		PreviousInvoiceID *string `json:"previous_invoice_id"`
		NewInvoiceID      *string `json:"new_invoice_id"`
		Reason            string  `json:"reason" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	previous, err := parseOptionalID(payload.PreviousInvoiceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid previous_invoice_id"})
		return
	}
	next, err := parseOptionalID(payload.NewInvoiceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid new_invoice_id"})
		return
	}

	entry, err := h.reconciler.OverrideMatch(c.Request.Context(), tenant, txID,
		previous, next, h.actor(c), payload.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// UndoOverride replays the inverse of the most recent override.
func (h *Handler) UndoOverride(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	entry, err := h.reconciler.UndoLastOverride(c.Request.Context(), tenant, txID, h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
