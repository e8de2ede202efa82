package reconcile

import (
	"context"
	"errors"
	"math"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/models"
	"moshimoshi/services/realtime"

	"go.uber.org/zap"
)

// Archiver requests a best-effort archive of a call recording. It must never
// gate the status write; implementations queue the work and return quickly.
type Archiver interface {
	Archive(ctx context.Context, reservationID, conversationID string) error
}

// Result reports what one delivery did. UpdatedID is empty for the
// soft-fail (no target) case.
type Result struct {
	UpdatedID string
	Updated   bool
	Status    models.Status
}

// Service orchestrates one webhook delivery end-to-end: parse, resolve,
// normalize, persist, notify, archive.
type Service struct {
	Repo      reservationRepo.Repository
	Publisher realtime.Publisher
	Archiver  Archiver
	Logger    *zap.Logger

	resolver *Resolver
}

func NewService(repo reservationRepo.Repository, pub realtime.Publisher, arch Archiver, logger *zap.Logger) *Service {
	return &Service{
		Repo:      repo,
		Publisher: pub,
		Archiver:  arch,
		Logger:    logger,
		resolver:  NewResolver(repo, logger),
	}
}

// ProcessDelivery ingests one raw webhook body. Exactly one record is
// mutated per call, or none at all. Errors are returned only for true
// persistence failures; every other problem is recovered locally so the
// delivery can be acknowledged.
func (s *Service) ProcessDelivery(ctx context.Context, body []byte) (*Result, error) {
	payload, err := models.ParseCallCompletedWebhook(body)
	if err != nil {
		// Not JSON at all. Acknowledge without resolving: running a zero
		// payload through the fallback correlation could mutate an
		// unrelated in-flight record.
		s.Logger.Warn("webhook body was not valid JSON", zap.Error(err))
		return &Result{}, nil
	}

	targetID, err := s.resolver.Resolve(ctx, payload)
	if errors.Is(err, ErrNoTarget) {
		s.Logger.Warn("webhook delivery dropped: no correlatable reservation",
			zap.String("conversation_id", payload.ResolvedConversationID()))
		return &Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	return s.Apply(ctx, targetID, payload)
}

// Apply classifies an already-correlated payload and persists it against the
// given record. Shared by the webhook path and the vendor-pull sync path.
func (s *Service) Apply(ctx context.Context, targetID string, payload models.CallCompletedWebhook) (*Result, error) {
	out := Normalize(payload.Data.Analysis)
	details := buildDetails(payload, out)

	rec, updated, err := s.Repo.ApplyCallOutcome(ctx, targetID, out, details)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		// An explicit correlation id pointing at a record we do not have.
		// Same soft-fail as an unresolvable delivery.
		s.Logger.Warn("webhook delivery dropped: resolved id does not exist",
			zap.String("reservation_id", targetID))
		return &Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	if updated {
		if err := s.Publisher.PublishUpdate(ctx, rec); err != nil {
			// The record is durable; a lost notification only delays the
			// client until its next refetch.
			s.Logger.Error("failed to publish reservation update",
				zap.String("reservation_id", rec.ID), zap.Error(err))
		}
	} else {
		s.Logger.Info("delivery left terminal reservation untouched",
			zap.String("reservation_id", rec.ID), zap.String("status", string(rec.Status)))
	}

	if convID := payload.ResolvedConversationID(); convID != "" {
		if err := s.Archiver.Archive(ctx, rec.ID, convID); err != nil {
			s.Logger.Error("failed to queue call recording archive",
				zap.String("reservation_id", rec.ID), zap.Error(err))
		}
	}

	return &Result{UpdatedID: rec.ID, Updated: updated, Status: rec.Status}, nil
}

// buildDetails assembles the persisted confirmation blob. Transcript entries
// are copied verbatim; a missing role becomes "unknown".
func buildDetails(payload models.CallCompletedWebhook, out models.CallOutcome) *models.ConfirmationDetails {
	details := &models.ConfirmationDetails{
		Summary: out.Summary,
		Results: map[string]string{},
	}
	for key, v := range payload.Data.Analysis.DataCollectionResults {
		if v.Present {
			details.Results[key] = v.Value
		}
	}
	for _, entry := range payload.Data.Transcript {
		role := entry.Role.Value
		if role == "" {
			role = "unknown"
		}
		details.Transcript = append(details.Transcript, models.TranscriptEntry{
			Role:    role,
			Message: entry.Message.Value,
		})
	}
	meta := payload.Data.Metadata
	if meta.CallDurationSecs != 0 || meta.Cost != 0 {
		details.CallStats = &models.CallStats{
			DurationSecs: int(math.Round(meta.CallDurationSecs)),
			Cost:         meta.Cost,
		}
	}
	return details
}
