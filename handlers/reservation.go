package handlers

import (
	"errors"
	"fmt"
	"net/http"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/models"
	"moshimoshi/services/reservation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReservationHandler exposes the reservation lifecycle endpoints.
type ReservationHandler struct {
	Svc    reservation.ReservationService
	Logger *zap.Logger
}

func NewReservationHandler(svc reservation.ReservationService, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Logger: logger}
}

// Create handles POST /api/reservations.
func (h *ReservationHandler) Create(c *gin.Context) {
	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if field := req.MissingField(); field != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Missing required field: %s", field)})
		return
	}

	rec, err := h.Svc.Create(c.Request.Context(), req)
	if err != nil {
		h.Logger.Error("failed to create reservation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create reservation"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"reservation": rec,
	})
}

// List handles GET /api/reservations.
func (h *ReservationHandler) List(c *gin.Context) {
	recs, err := h.Svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": recs})
}

// Get handles GET /api/reservations/:id.
func (h *ReservationHandler) Get(c *gin.Context) {
	rec, err := h.Svc.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, reservationRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": rec})
}

// StartCall handles POST /api/reservations/:id/start-call, invoked after the
// vendor's outbound-call API returned a conversation id.
func (h *ReservationHandler) StartCall(c *gin.Context) {
	var input struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.ConversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}

	rec, err := h.Svc.StartCall(c.Request.Context(), c.Param("id"), input.ConversationID)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		return
	}
	if errors.Is(err, reservationRepo.ErrInvalidState) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot start call: reservation is not pending"})
		return
	}
	if err != nil {
		h.Logger.Error("failed to start call", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update reservation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"reservation": rec,
		"message":     "Call initiated. Waiting for call completion webhook.",
	})
}

// Cancel handles POST /api/reservations/:id/cancel, the user-initiated
// manual transition.
func (h *ReservationHandler) Cancel(c *gin.Context) {
	rec, err := h.Svc.Cancel(c.Request.Context(), c.Param("id"))
	if errors.Is(err, reservationRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		return
	}
	if errors.Is(err, reservationRepo.ErrInvalidState) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reservation is already finalized"})
		return
	}
	if err != nil {
		h.Logger.Error("failed to cancel reservation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel reservation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": rec})
}

// Sync handles POST /api/reservations/:id/sync: pull the conversation
// analysis from the vendor and reconcile it, for when a webhook was lost.
func (h *ReservationHandler) Sync(c *gin.Context) {
	rec, err := h.Svc.SyncConversation(c.Request.Context(), c.Param("id"))
	if errors.Is(err, reservationRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		return
	}
	if errors.Is(err, reservation.ErrNoConversation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No conversation_id found for this reservation"})
		return
	}
	if err != nil {
		h.Logger.Error("failed to sync conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reservation": rec})
}
