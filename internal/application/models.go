package application

import (
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// BookingRequest captures caller provided booking fields. Start and End bound
// the first occurrence; for recurring requests their time of day becomes the
// series slot and the calendar day of Start the series start.
type BookingRequest struct {
	ResourceID  string
	Title       string
	OwnerID     string
	Start       time.Time
	End         time.Time
	Priority    scheduler.Priority
	Recurrence  *recurrence.Definition
	MinCapacity int
}

// Recurring reports whether the request describes a series.
func (r BookingRequest) Recurring() bool {
	return r.Recurrence != nil
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Request   BookingRequest
}

// BookingState is the terminal state of a booking request.
type BookingState string

const (
	// StateCommitted means every instance was written.
	StateCommitted BookingState = "committed"
	// StateRejected means at least one instance conflicts and nothing was written.
	StateRejected BookingState = "rejected"
	// StateWaitlisted means the conflicting instances were parked on the waitlist.
	StateWaitlisted BookingState = "waitlisted"
)

// InstanceConflict names one conflicting occurrence and what blocks it.
type InstanceConflict struct {
	Index    int
	Date     time.Time
	Interval scheduler.TimeInterval
	Blockers []scheduler.Booking
}

// ConflictReport lists every conflicting instance of a request together with
// the resolver's verdict, so callers can decide in one round trip.
type ConflictReport struct {
	ConflictID          string
	Instances           []InstanceConflict
	CanOverride         bool
	TimeSuggestions     []scheduler.Suggestion
	ResourceSuggestions []scheduler.Suggestion
}

// Blockers returns the distinct blocking bookings across all instances.
func (r ConflictReport) Blockers() []scheduler.Booking {
	seen := make(map[string]struct{})
	var out []scheduler.Booking
	for _, instance := range r.Instances {
		for _, blocker := range instance.Blockers {
			if _, ok := seen[blocker.ID]; ok {
				continue
			}
			seen[blocker.ID] = struct{}{}
			out = append(out, blocker)
		}
	}
	return out
}

// BookingResult is the outcome of a create, reschedule, or resolution request.
type BookingResult struct {
	State            BookingState
	Bookings         []scheduler.Booking
	RecurringGroupID string
	Displaced        []scheduler.Booking
	Conflict         *ConflictReport
}

// ResolveConflictParams carries the caller's decision for a reported conflict.
// The original request is resubmitted; NewStart/NewEnd apply to Rescheduled and
// NewResourceID to ResourceChanged. ConflictID correlates the decision with
// a report and is not verified.
type ResolveConflictParams struct {
	Principal     Principal
	ConflictID    string
	Request       BookingRequest
	Outcome       scheduler.Outcome
	NewStart      time.Time
	NewEnd        time.Time
	NewResourceID string
	Notes         string
}

// ResolveConflictResult is the outcome of a resolution flow. Record is set
// whenever the chosen outcome was carried out.
type ResolveConflictResult struct {
	Booking  BookingResult
	Waitlist []scheduler.WaitlistEntry
	Record   *scheduler.ResolutionRecord
}

// RescheduleBookingParams moves one booking to a new interval.
type RescheduleBookingParams struct {
	Principal Principal
	BookingID string
	Start     time.Time
	End       time.Time
}

// CancelResult reports what a cancellation changed.
type CancelResult struct {
	Cancelled []scheduler.Booking
	Promoted  []scheduler.WaitlistEntry
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name       string
	Location   string
	Capacity   int
	Facilities *string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update an existing room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// Room is the catalog entry exposed to callers.
type Room = persistence.Room
