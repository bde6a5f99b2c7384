// Package events publishes the records the booking engine produces for
// external collaborators: committed and cancelled bookings, resolution
// records and waitlist decisions.
package events

import (
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// Routing keys, one per event type.
const (
	KeyBookingsCommitted  = "booking.committed"
	KeyBookingsCancelled  = "booking.cancelled"
	KeyResolutionRecorded = "resolution.recorded"
	KeyWaitlistUpdated    = "waitlist.updated"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type BookingPayload struct {
	ID               string    `json:"id"`
	ResourceID       string    `json:"resource_id"`
	Title            string    `json:"title"`
	OwnerID          string    `json:"owner_id"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Priority         string    `json:"priority"`
	RecurringGroupID string    `json:"recurring_group_id,omitempty"`
	Status           string    `json:"status"`
}

type BookingsPayload struct {
	Bookings []BookingPayload `json:"bookings"`
}

type ResolutionPayload struct {
	ID         string    `json:"id"`
	ConflictID string    `json:"conflict_id"`
	Outcome    string    `json:"outcome"`
	ResolvedBy string    `json:"resolved_by"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes,omitempty"`
}

type WaitlistPayload struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	RequestedAt time.Time      `json:"requested_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
	Request     BookingPayload `json:"request"`
}

func bookingPayload(booking scheduler.Booking) BookingPayload {
	return BookingPayload{
		ID:               booking.ID,
		ResourceID:       booking.ResourceID,
		Title:            booking.Title,
		OwnerID:          booking.OwnerID,
		Start:            booking.Interval.Start.UTC(),
		End:              booking.Interval.End.UTC(),
		Priority:         booking.Priority.String(),
		RecurringGroupID: booking.RecurringGroupID,
		Status:           string(booking.Status),
	}
}

func bookingsPayload(bookings []scheduler.Booking) BookingsPayload {
	out := BookingsPayload{Bookings: make([]BookingPayload, 0, len(bookings))}
	for _, booking := range bookings {
		out.Bookings = append(out.Bookings, bookingPayload(booking))
	}
	return out
}

func resolutionPayload(record scheduler.ResolutionRecord) ResolutionPayload {
	return ResolutionPayload{
		ID:         record.ID,
		ConflictID: record.ConflictID,
		Outcome:    string(record.Outcome),
		ResolvedBy: record.ResolvedBy,
		Timestamp:  record.Timestamp.UTC(),
		Notes:      record.Notes,
	}
}

func waitlistPayload(entry scheduler.WaitlistEntry) WaitlistPayload {
	payload := WaitlistPayload{
		ID:          entry.ID,
		Status:      string(entry.Status),
		RequestedAt: entry.RequestedAt.UTC(),
		Request:     bookingPayload(entry.Request),
	}
	if !entry.DecidedAt.IsZero() {
		decided := entry.DecidedAt.UTC()
		payload.DecidedAt = &decided
	}
	return payload
}
