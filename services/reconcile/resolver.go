package reconcile

import (
	"context"
	"errors"

	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/models"

	"go.uber.org/zap"
)

// ErrNoTarget signals that a delivery could not be correlated to any
// reservation record. The caller must not mutate anything in that case.
var ErrNoTarget = errors.New("no target reservation for webhook delivery")

// Resolver determines which reservation record a webhook delivery applies
// to.
type Resolver struct {
	repo   reservationRepo.Repository
	logger *zap.Logger
}

func NewResolver(repo reservationRepo.Repository, logger *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns the target record id for a delivery.
//
// Resolution order:
//  1. the reservation_id passed through the vendor's dynamic variables at
//     call-initiation time, authoritative when present;
//  2. lookup by the vendor conversation id stored when the call started;
//  3. degraded fallback: the single most recently created record still in
//     the "calling" status. Two concurrent in-flight calls that both lack a
//     correlation id would collide here; this path exists because deliveries
//     without the id are an observed real condition, not because it is
//     sound. It goes away once the correlation id is mandatory upstream.
//
// With zero calling records the resolver fails explicitly with ErrNoTarget
// instead of picking an arbitrary unrelated row.
func (r *Resolver) Resolve(ctx context.Context, payload models.CallCompletedWebhook) (string, error) {
	if id := payload.DynamicReservationID(); id != "" {
		return id, nil
	}

	if convID := payload.ResolvedConversationID(); convID != "" {
		rec, err := r.repo.GetByConversationID(ctx, convID)
		if err == nil {
			return rec.ID, nil
		}
		if !errors.Is(err, reservationRepo.ErrNotFound) {
			return "", err
		}
	}

	rec, err := r.repo.LatestCalling(ctx)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		return "", ErrNoTarget
	}
	if err != nil {
		return "", err
	}
	r.logger.Warn("webhook delivery had no correlation id; resolved by most recent calling record",
		zap.String("reservation_id", rec.ID))
	return rec.ID, nil
}
