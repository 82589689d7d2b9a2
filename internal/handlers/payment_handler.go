package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Smashkat12/crechebooks-sub018/internal/models"
	"github.com/Smashkat12/crechebooks-sub018/internal/services/allocation"
)

// MatchPayments runs the matching engine over pending credits.
func (h *Handler) MatchPayments(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		TransactionIDs []string `json:"transaction_ids"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}

	var ids []uuid.UUID
	for _, raw := range payload.TransactionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID " + raw})
			return
		}
		ids = append(ids, id)
	}

	result, err := h.matcher.MatchPayments(c.Request.Context(), tenant, ids)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AllocatePayment splits a transaction's amount across invoices.
func (h *Handler) AllocatePayment(c *gin.Context) {
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
		Allocations []allocation.Line `json:"allocations" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.allocator.Allocate(c.Request.Context(), tenant, txID,
		payload.Allocations, h.actor(c), models.MatchTypeManual, models.MatchedByUser, 100)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReversePayment cancels a payment, keeping it for audit.
func (h *Handler) ReversePayment(c *gin.Context) {
	tenant, ok := h.tenantID(c)
	if !ok {
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment ID"})
		return
	}

	var payload struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	result, err := h.allocator.Reverse(c.Request.Context(), tenant, paymentID, payload.Reason, h.actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
