package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"moshimoshi/services/reconcile"

	"github.com/gin-gonic/gin"
)

// MockWebhookHandler simulates a vendor delivery for development and manual
// testing. Not registered in production.
type MockWebhookHandler struct {
	Reconcile *reconcile.Service
}

func NewMockWebhookHandler(svc *reconcile.Service) *MockWebhookHandler {
	return &MockWebhookHandler{Reconcile: svc}
}

// CallComplete handles POST /api/test/mock-call-complete with
// { reservation_id, success }.
func (h *MockWebhookHandler) CallComplete(c *gin.Context) {
	var input struct {
		ReservationID string `json:"reservation_id"`
		Success       *bool  `json:"success"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.ReservationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing reservation_id"})
		return
	}
	success := input.Success == nil || *input.Success

	results := map[string]interface{}{}
	var transcript []map[string]string
	if success {
		results["reservation_status"] = map[string]string{"value": "confirmed"}
		results["restaurant_notes"] = "Window seat requested and confirmed"
		transcript = []map[string]string{
			{"role": "agent", "message": "予約をお願いしたいのですが。"},
			{"role": "user", "message": "はい、ご予約承りました。19時、2名様でお待ちしております。"},
		}
	} else {
		results["reservation_status"] = "failed"
		results["rejection_reason"] = "Restaurant fully booked"
		transcript = []map[string]string{
			{"role": "user", "message": "申し訳ございません。その日時は満席となっております。"},
		}
	}

	mock := map[string]interface{}{
		"conversation_id": fmt.Sprintf("mock_conv_%d", time.Now().UnixNano()),
		"data": map[string]interface{}{
			"analysis": map[string]interface{}{
				"transcript_summary":      "Mock call generated for testing.",
				"data_collection_results": results,
			},
			"transcript": transcript,
			"metadata": map[string]interface{}{
				"call_duration_secs": 72,
				"cost":               0.18,
			},
			"conversation_initiation_client_data": map[string]interface{}{
				"dynamic_variables": map[string]string{
					"reservation_id": input.ReservationID,
				},
			},
		},
	}

	body, err := json.Marshal(mock)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	result, err := h.Reconcile.ProcessDelivery(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reservation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Mock webhook processed",
		"webhook_payload":  mock,
		"webhook_response": gin.H{"success": true, "updated_id": result.UpdatedID},
	})
}
