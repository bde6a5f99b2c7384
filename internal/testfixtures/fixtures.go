package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	roomCounter    uint64
	bookingCounter uint64
)

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic meeting room record.
type RoomFixture struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a room with a unique id and name.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Main Office",
		Capacity:  int(4 + idx%4),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) { f.Capacity = capacity }
}

// WithRoomFacilities sets a facilities description.
func WithRoomFacilities(facilities string) RoomOption {
	return func(f *RoomFixture) {
		value := facilities
		f.Facilities = &value
	}
}

// Persistence returns the fixture as a stored room.
func (f RoomFixture) Persistence() persistence.Room {
	var facilities *string
	if f.Facilities != nil {
		value := *f.Facilities
		facilities = &value
	}
	return persistence.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: facilities,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.CreatedAt,
	}
}

// Input returns the fixture as create/update input.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: f.Facilities,
	}
}

// ---------------------------- Booking fixtures ---------------------------

// BookingFixture is a confirmed booking on Day(0), 09:00-10:00 by default.
type BookingFixture struct {
	scheduler.Booking
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

func NewBookingFixture(resourceID string, opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	fixture := BookingFixture{Booking: scheduler.Booking{
		ID:         fmt.Sprintf("booking-%03d", idx),
		ResourceID: resourceID,
		Title:      fmt.Sprintf("Meeting %03d", idx),
		OwnerID:    "user-1",
		Interval:   scheduler.TimeInterval{Start: At(0, 9, 0), End: At(0, 10, 0)},
		Priority:   scheduler.PriorityNormal,
		Status:     scheduler.StatusConfirmed,
		CreatedAt:  referenceTime,
	}}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) { f.ID = id }
}

func WithBookingOwner(ownerID string) BookingOption {
	return func(f *BookingFixture) { f.OwnerID = ownerID }
}

func WithBookingPriority(priority scheduler.Priority) BookingOption {
	return func(f *BookingFixture) { f.Priority = priority }
}

// WithBookingHours places the booking on Day(day) between two whole hours.
func WithBookingHours(day, startHour, endHour int) BookingOption {
	return func(f *BookingFixture) {
		f.Interval = scheduler.TimeInterval{Start: At(day, startHour, 0), End: At(day, endHour, 0)}
	}
}

func WithBookingGroup(groupID string) BookingOption {
	return func(f *BookingFixture) { f.RecurringGroupID = groupID }
}

// Request returns the fixture as a new booking request.
func (f BookingFixture) Request() application.BookingRequest {
	return application.BookingRequest{
		ResourceID: f.ResourceID,
		Title:      f.Title,
		OwnerID:    f.OwnerID,
		Start:      f.Interval.Start,
		End:        f.Interval.End,
		Priority:   f.Priority,
	}
}

// -------------------------- Recurrence fixtures --------------------------

// DailyFor repeats every day for count occurrences.
func DailyFor(count int) *recurrence.Definition {
	return &recurrence.Definition{
		Frequency: recurrence.FrequencyDaily,
		Interval:  1,
		End:       recurrence.AfterOccurrences(count),
	}
}

// WeekdaysFor repeats Monday to Friday for count occurrences.
func WeekdaysFor(count int) *recurrence.Definition {
	return &recurrence.Definition{
		Frequency: recurrence.FrequencyWeekly,
		Interval:  1,
		Weekdays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		End:       recurrence.AfterOccurrences(count),
	}
}

// Principal returns a non-admin principal.
func Principal(userID string) application.Principal {
	return application.Principal{UserID: userID}
}

// Admin returns an administrator principal.
func Admin(userID string) application.Principal {
	return application.Principal{UserID: userID, IsAdmin: true}
}
