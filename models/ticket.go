package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the presentation status shown on a reservation ticket.
// It is the client-side projection of the canonical record status.
type TicketStatus string

const (
	TicketPending        TicketStatus = "pending"
	TicketConfirmed      TicketStatus = "confirmed"
	TicketActionRequired TicketStatus = "actionRequired"
	TicketFailed         TicketStatus = "failed"
	TicketIncomplete     TicketStatus = "incomplete"
	TicketCancelled      TicketStatus = "cancelled"
)

// TicketStatusFor maps a canonical record status onto the presentation enum.
// The pre-call sub-states both render as pending; anything unrecognized
// renders as incomplete.
func TicketStatusFor(s Status) TicketStatus {
	switch s {
	case StatusPending, StatusCalling:
		return TicketPending
	case StatusCompleted:
		return TicketConfirmed
	case StatusActionRequired:
		return TicketActionRequired
	case StatusFailed:
		return TicketFailed
	case StatusCancelled:
		return TicketCancelled
	default:
		return TicketIncomplete
	}
}

// CanTransition reports whether the ticket state machine permits moving from
// one presentation status to another. Confirmed and cancelled are terminal;
// cancellation is reachable from every non-terminal state.
func (from TicketStatus) CanTransition(to TicketStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case TicketPending:
		switch to {
		case TicketConfirmed, TicketActionRequired, TicketFailed, TicketIncomplete, TicketCancelled:
			return true
		}
	case TicketActionRequired, TicketFailed, TicketIncomplete:
		return to == TicketCancelled
	}
	return false
}

// ReservationItem is the ephemeral client-side ticket. It is created
// optimistically when the user submits a request, before the backend assigns
// a record id, and patched by every subsequent reconciliation push. It is
// never persisted independently.
type ReservationItem struct {
	LocalID       string
	RecordID      string // backend id, empty until creation succeeds
	Request       CreateReservationRequest
	Status        TicketStatus
	ResultMessage string
	Record        *Reservation // full record for detail display, may be nil
	CreatedAt     time.Time
}

// NewReservationItem builds an optimistic pending ticket for a just-submitted
// request.
func NewReservationItem(req CreateReservationRequest) *ReservationItem {
	return &ReservationItem{
		LocalID:   uuid.New().String(),
		Request:   req,
		Status:    TicketPending,
		CreatedAt: time.Now(),
	}
}

// Apply patches the ticket with a pushed record update. Updates that the
// state machine forbids (anything after confirmed or cancelled) are dropped,
// so a late duplicate can never downgrade a terminal ticket.
func (i *ReservationItem) Apply(rec *Reservation) bool {
	next := TicketStatusFor(rec.Status)
	if next != i.Status && !i.Status.CanTransition(next) {
		return false
	}
	i.Status = next
	i.Record = rec
	i.RecordID = rec.ID
	if rec.FailureReason != "" {
		i.ResultMessage = rec.FailureReason
	} else if rec.ConfirmationDetails != nil {
		i.ResultMessage = rec.ConfirmationDetails.Summary
	}
	return true
}
