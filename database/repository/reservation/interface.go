package reservationRepo

import (
	"context"
	"errors"

	"moshimoshi/models"
)

var (
	// ErrNotFound is returned when no reservation matches the query.
	ErrNotFound = errors.New("reservation not found")
	// ErrInvalidState is returned when a lifecycle transition is refused
	// because the record is not in the required status.
	ErrInvalidState = errors.New("reservation is not in a valid state for this transition")
)

// Repository defines persistence for reservation records. The persistence
// layer is the sole point of mutual exclusion in the pipeline: every write
// that can race is expressed as a single conditional update.
type Repository interface {
	Create(ctx context.Context, rec *models.Reservation) error
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	GetByConversationID(ctx context.Context, conversationID string) (*models.Reservation, error)
	List(ctx context.Context) ([]models.Reservation, error)

	// LatestCalling returns the most recently created record whose status
	// is "calling". Used only by the degraded correlation fallback.
	LatestCalling(ctx context.Context) (*models.Reservation, error)

	// MarkCalling transitions pending -> calling and stores the vendor
	// conversation id, atomically.
	MarkCalling(ctx context.Context, id, conversationID string) (*models.Reservation, error)

	// ApplyCallOutcome persists a normalized call outcome in one guarded
	// write. Records already in a terminal status are left untouched; the
	// returned bool reports whether a mutation happened.
	ApplyCallOutcome(ctx context.Context, id string, out models.CallOutcome, details *models.ConfirmationDetails) (*models.Reservation, bool, error)

	// Cancel performs the user-initiated transition to cancelled. Refused
	// for terminal records.
	Cancel(ctx context.Context, id string) (*models.Reservation, error)

	// SetAudioURL stores the archived recording URL unless one is already
	// present; an existing URL is never overwritten.
	SetAudioURL(ctx context.Context, id, url string) (*models.Reservation, bool, error)
}
