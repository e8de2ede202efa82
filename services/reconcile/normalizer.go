package reconcile

import (
	"strings"

	"moshimoshi/models"
)

// Vendor data-collection keys.
const (
	keyReservationStatus = "reservation_status"
	keyRequiredAction    = "required_action"
	keyRejectionReason   = "rejection_reason"
	keyRestaurantNotes   = "restaurant_notes"
)

// Normalize classifies a raw vendor analysis block into a canonical call
// outcome. It is pure and total: wrapper unwrapping happens in the FlexString
// decode, matching is case- and whitespace-insensitive, and anything
// unrecognized or absent degrades to incomplete rather than erroring,
// because a delivery that cannot be classified must still be acknowledged.
func Normalize(a models.WebhookAnalysis) models.CallOutcome {
	out := models.CallOutcome{
		Status:  models.StatusIncomplete,
		Summary: a.TranscriptSummary.Value,
	}

	status := strings.ToLower(strings.TrimSpace(a.Result(keyReservationStatus).Value))
	switch status {
	case "confirmed":
		out.Status = models.StatusCompleted
		out.BookingConfirmed = true
		// FailureReason stays empty: confirmation clears any prior reason.
	case "action required", "action_required":
		out.Status = models.StatusActionRequired
		out.FailureReason = a.Result(keyRequiredAction).Value
	case "failed":
		out.Status = models.StatusFailed
		out.FailureReason = a.Result(keyRejectionReason).Value
	}
	return out
}
