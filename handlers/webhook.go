package handlers

import (
	"io"
	"net/http"

	"moshimoshi/services/reconcile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody caps inbound webhook bodies; transcripts are text, anything
// larger is not a legitimate delivery.
const maxWebhookBody = 1 << 20

// WebhookHandler receives post-call deliveries from the voice-AI vendor.
type WebhookHandler struct {
	Reconcile *reconcile.Service
	Logger    *zap.Logger
}

func NewWebhookHandler(svc *reconcile.Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{Reconcile: svc, Logger: logger}
}

// CallCompleted handles POST /api/webhook/call-completed.
//
// The vendor does not retry indefinitely, so every delivery that is not a
// true persistence failure is acknowledged with 200. That includes the case
// where no reservation could be correlated, which responds success with an
// empty updated_id rather than amplifying retries.
func (h *WebhookHandler) CallCompleted(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.Logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": true, "updated_id": ""})
		return
	}

	result, err := h.Reconcile.ProcessDelivery(c.Request.Context(), body)
	if err != nil {
		h.Logger.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reservation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"updated_id": result.UpdatedID,
	})
}
