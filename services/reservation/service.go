// Package reservation implements the reservation lifecycle around the
// reconciliation pipeline: creation, listing, the pending -> calling
// transition, user cancellation, and the vendor-pull sync path.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/models"
	"moshimoshi/services/elevenlabs"
	"moshimoshi/services/realtime"
	"moshimoshi/services/reconcile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoConversation is returned when a sync is requested for a record that
// never started a call.
var ErrNoConversation = errors.New("reservation has no conversation id")

// ConversationFetcher pulls post-call details from the vendor.
type ConversationFetcher interface {
	GetConversation(ctx context.Context, conversationID string) (*elevenlabs.Conversation, error)
}

// ReservationService defines the reservation lifecycle operations.
type ReservationService interface {
	Create(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error)
	List(ctx context.Context) ([]models.Reservation, error)
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	StartCall(ctx context.Context, id, conversationID string) (*models.Reservation, error)
	Cancel(ctx context.Context, id string) (*models.Reservation, error)
	SyncConversation(ctx context.Context, id string) (*models.Reservation, error)
}

// DefaultReservationService implements ReservationService.
type DefaultReservationService struct {
	Repo      reservationRepo.Repository
	Publisher realtime.Publisher
	Reconcile *reconcile.Service
	Vendor    ConversationFetcher
	Logger    *zap.Logger
}

// Create inserts a new pending reservation. Validation of required fields
// happens at the handler boundary.
func (s *DefaultReservationService) Create(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error) {
	now := time.Now().UTC()
	rec := &models.Reservation{
		ID:              uuid.New().String(),
		RestaurantName:  req.RestaurantName,
		RestaurantPhone: req.RestaurantPhone,
		ReservationDate: req.ReservationDate,
		ReservationTime: req.ReservationTime,
		PartySize:       req.PartySize,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		SpecialRequests: req.SpecialRequests,
		Status:          models.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.Logger.Info("reservation created",
		zap.String("reservation_id", rec.ID),
		zap.String("restaurant", rec.RestaurantName))
	return rec, nil
}

func (s *DefaultReservationService) List(ctx context.Context) ([]models.Reservation, error) {
	return s.Repo.List(ctx)
}

func (s *DefaultReservationService) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	return s.Repo.GetByID(ctx, id)
}

// StartCall records the vendor conversation id once the outbound call has
// been placed, moving the record into the in-progress calling state.
func (s *DefaultReservationService) StartCall(ctx context.Context, id, conversationID string) (*models.Reservation, error) {
	rec, err := s.Repo.MarkCalling(ctx, id, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.Publisher.PublishUpdate(ctx, rec); err != nil {
		s.Logger.Error("failed to publish calling update",
			zap.String("reservation_id", id), zap.Error(err))
	}
	return rec, nil
}

// Cancel is the user-initiated manual transition to cancelled.
func (s *DefaultReservationService) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	rec, err := s.Repo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Publisher.PublishUpdate(ctx, rec); err != nil {
		s.Logger.Error("failed to publish cancellation",
			zap.String("reservation_id", id), zap.Error(err))
	}
	return rec, nil
}

// SyncConversation pulls the conversation analysis from the vendor and runs
// it through the same reconcile path as a webhook delivery. Useful when a
// webhook was lost.
func (s *DefaultReservationService) SyncConversation(ctx context.Context, id string) (*models.Reservation, error) {
	rec, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.ConversationID == "" {
		return nil, ErrNoConversation
	}

	conv, err := s.Vendor.GetConversation(ctx, rec.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("sync reservation %s: %w", id, err)
	}

	payload := models.CallCompletedWebhook{
		ConversationID: models.FlexString{Value: conv.ConversationID, Present: conv.ConversationID != ""},
		Data: models.WebhookData{
			Analysis:   conv.Analysis,
			Transcript: conv.Transcript,
			Metadata:   conv.Metadata,
		},
	}
	if _, err := s.Reconcile.Apply(ctx, id, payload); err != nil {
		return nil, err
	}
	return s.Repo.GetByID(ctx, id)
}
