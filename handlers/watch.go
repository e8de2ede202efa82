package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/models"
	"moshimoshi/services/realtime"
	"moshimoshi/services/reservation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultWatchTimeout = 60 * time.Second
	maxWatchTimeout     = 120 * time.Second
)

// WatchHandler serves the blocking ticket-watch endpoint: a client holding a
// pending ticket long-polls here and gets back the first terminal update for
// its reservation.
type WatchHandler struct {
	Svc     reservation.ReservationService
	Watcher *realtime.Watcher
	Logger  *zap.Logger
}

func NewWatchHandler(svc reservation.ReservationService, watcher *realtime.Watcher, logger *zap.Logger) *WatchHandler {
	return &WatchHandler{Svc: svc, Watcher: watcher, Logger: logger}
}

// Watch handles GET /api/reservations/:id/watch?timeout_secs=N.
//
// If the record is already past pending the projection is returned without
// subscribing. A push can land between that check and the subscribe; the
// refetch after a timed-out wait covers it.
func (h *WatchHandler) Watch(c *gin.Context) {
	id := c.Param("id")

	timeout := defaultWatchTimeout
	if raw := c.Query("timeout_secs"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeout_secs must be a positive integer"})
			return
		}
		timeout = time.Duration(secs) * time.Second
		if timeout > maxWatchTimeout {
			timeout = maxWatchTimeout
		}
	}

	rec, err := h.Svc.GetByID(c.Request.Context(), id)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reservation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if status := models.TicketStatusFor(rec.Status); status != models.TicketPending {
		c.JSON(http.StatusOK, ticketResponse(status, rec, ticketMessage(rec), false))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	update, err := h.Watcher.AwaitTerminal(ctx, id)
	if err != nil {
		// The wait expired or the client went away. Refetch once: a push may
		// have landed before the subscription was live.
		rec, getErr := h.Svc.GetByID(c.Request.Context(), id)
		if getErr == nil {
			status := models.TicketStatusFor(rec.Status)
			c.JSON(http.StatusOK, ticketResponse(status, rec, ticketMessage(rec), status == models.TicketPending))
			return
		}
		h.Logger.Warn("watch refetch failed", zap.String("reservation_id", id), zap.Error(getErr))
		c.JSON(http.StatusOK, ticketResponse(models.TicketPending, nil, "", true))
		return
	}

	c.JSON(http.StatusOK, ticketResponse(update.Status, update.Record, update.Message, false))
}

func ticketResponse(status models.TicketStatus, rec *models.Reservation, message string, timedOut bool) gin.H {
	resp := gin.H{
		"ticket_status": status,
		"message":       message,
	}
	if rec != nil {
		resp["reservation"] = rec
	}
	if timedOut {
		resp["timed_out"] = true
	}
	return resp
}

func ticketMessage(rec *models.Reservation) string {
	if rec.FailureReason != "" {
		return rec.FailureReason
	}
	if rec.ConfirmationDetails != nil {
		return rec.ConfirmationDetails.Summary
	}
	return ""
}
