package models

import "time"

// Status is the canonical reservation status stored on a record.
//
// "pending" and "calling" are the pre-call sub-states; "completed",
// "action_required", "failed" and "incomplete" are assigned by the
// reconciliation pipeline; "cancelled" is user-initiated. "completed" and
// "cancelled" are terminal: the pipeline never transitions a record out of
// them.
type Status string

const (
	StatusPending        Status = "pending"
	StatusCalling        Status = "calling"
	StatusCompleted      Status = "completed"
	StatusActionRequired Status = "action_required"
	StatusFailed         Status = "failed"
	StatusIncomplete     Status = "incomplete"
	StatusCancelled      Status = "cancelled"
)

// IsTerminal reports whether the pipeline may still mutate a record in this
// status. User cancellation of a non-terminal record is a separate manual
// transition and is not gated by this.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TranscriptEntry is one speaker/utterance pair copied verbatim from the
// vendor transcript.
type TranscriptEntry struct {
	Role    string `bson:"role" json:"role"`
	Message string `bson:"message" json:"message"`
}

// CallStats holds the vendor-reported call metadata.
type CallStats struct {
	DurationSecs int     `bson:"call_duration_secs" json:"call_duration_secs"`
	Cost         float64 `bson:"cost" json:"cost"`
}

// ConfirmationDetails is the structured outcome blob persisted after a call.
type ConfirmationDetails struct {
	Summary    string            `bson:"summary,omitempty" json:"summary,omitempty"`
	Results    map[string]string `bson:"results,omitempty" json:"results,omitempty"`
	Transcript []TranscriptEntry `bson:"transcript,omitempty" json:"transcript,omitempty"`
	CallStats  *CallStats        `bson:"call_stats,omitempty" json:"call_stats,omitempty"`
}

// Reservation is one reservation attempt, one document per attempt.
type Reservation struct {
	ID string `bson:"id" json:"id"` // Assigned at creation, immutable.

	// ConversationID is the vendor-assigned correlation id, set once the
	// outbound call starts.
	ConversationID string `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`

	RestaurantName  string `bson:"restaurant_name" json:"restaurant_name"`
	RestaurantPhone string `bson:"restaurant_phone" json:"restaurant_phone"`
	ReservationDate string `bson:"reservation_date" json:"reservation_date"` // YYYY-MM-DD
	ReservationTime string `bson:"reservation_time" json:"reservation_time"` // HH:MM
	PartySize       int    `bson:"party_size" json:"party_size"`
	CustomerName    string `bson:"customer_name" json:"customer_name"`
	CustomerPhone   string `bson:"customer_phone" json:"customer_phone"`
	CustomerEmail   string `bson:"customer_email,omitempty" json:"customer_email,omitempty"`
	SpecialRequests string `bson:"special_requests,omitempty" json:"special_requests,omitempty"`

	Status              Status               `bson:"status" json:"status"`
	BookingConfirmed    bool                 `bson:"booking_confirmed" json:"booking_confirmed"`
	FailureReason       string               `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	ConfirmationDetails *ConfirmationDetails `bson:"confirmation_details,omitempty" json:"confirmation_details,omitempty"`

	// AudioURL is populated asynchronously by the archive worker and is
	// never cleared once set.
	AudioURL string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`

	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
	CallStartedAt *time.Time `bson:"call_started_at,omitempty" json:"call_started_at,omitempty"`
	CallEndedAt   *time.Time `bson:"call_ended_at,omitempty" json:"call_ended_at,omitempty"`
}

// CallOutcome is the canonical classification of one webhook delivery: the
// status to persist, whether the booking was confirmed, and the vendor-given
// failure reason when there is one.
type CallOutcome struct {
	Status           Status
	BookingConfirmed bool
	FailureReason    string
	Summary          string
}

// CreateReservationRequest is the payload accepted by POST /api/reservations.
type CreateReservationRequest struct {
	RestaurantName  string `json:"restaurant_name"`
	RestaurantPhone string `json:"restaurant_phone"`
	ReservationDate string `json:"reservation_date"` // YYYY-MM-DD
	ReservationTime string `json:"reservation_time"` // HH:MM
	PartySize       int    `json:"party_size"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

// MissingField returns the name of the first absent required field, or "".
func (r CreateReservationRequest) MissingField() string {
	required := []struct {
		name string
		ok   bool
	}{
		{"restaurant_name", r.RestaurantName != ""},
		{"restaurant_phone", r.RestaurantPhone != ""},
		{"reservation_date", r.ReservationDate != ""},
		{"reservation_time", r.ReservationTime != ""},
		{"party_size", r.PartySize > 0},
		{"customer_name", r.CustomerName != ""},
		{"customer_phone", r.CustomerPhone != ""},
	}
	for _, f := range required {
		if !f.ok {
			return f.name
		}
	}
	return ""
}
