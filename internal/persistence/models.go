package persistence

import (
	"time"

	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

// Room represents a meeting room catalog entry.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Resource projects the room onto the engine's view of a bookable resource.
func (r Room) Resource() scheduler.Resource {
	return scheduler.Resource{ID: r.ID, Name: r.Name, Location: r.Location, Capacity: r.Capacity}
}

// Series is the stored definition of a committed recurring request. Its ID is
// the recurring group id carried by every instance booking.
type Series struct {
	ID         string
	ResourceID string
	OwnerID    string
	Title      string
	Definition recurrence.Definition
	StartsOn   time.Time
	Slot       recurrence.TimeSlot
	CreatedAt  time.Time
}

// BookingCommit is one atomic write: new bookings, bookings they displace, and
// optionally the series record the bookings belong to.
type BookingCommit struct {
	Bookings []scheduler.Booking
	Displace []string
	Series   *Series
}
