package persistence

import (
	"context"

	"github.com/example/room-booking/internal/scheduler"
)

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	ListRoomsByMinCapacity(ctx context.Context, capacity int) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// BookingRepository stores bookings and closes the check-then-commit race.
//
// CommitBookings writes every booking in the commit or none of them. It must
// return ErrConstraintViolation when any new booking overlaps a confirmed
// booking of the same room that is not listed in Displace.
type BookingRepository interface {
	ListConfirmedBookings(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.Booking, error)
	CommitBookings(ctx context.Context, commit BookingCommit) error
	GetBooking(ctx context.Context, id string) (scheduler.Booking, error)
	ListSeriesBookings(ctx context.Context, groupID string) ([]scheduler.Booking, error)
	CancelBookings(ctx context.Context, ids []string) ([]scheduler.Booking, error)
}

// SeriesRepository reads recurring series definitions written by CommitBookings.
type SeriesRepository interface {
	GetSeries(ctx context.Context, id string) (Series, error)
}

// WaitlistRepository persists parked requests.
type WaitlistRepository interface {
	SaveWaitlistEntry(ctx context.Context, entry scheduler.WaitlistEntry) error
	GetWaitlistEntry(ctx context.Context, id string) (scheduler.WaitlistEntry, error)
	ListPendingWaitlist(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.WaitlistEntry, error)
}

// ResolutionRepository is the append-only audit trail of conflict resolutions.
type ResolutionRepository interface {
	AppendResolution(ctx context.Context, record scheduler.ResolutionRecord) error
	ListResolutions(ctx context.Context, conflictID string) ([]scheduler.ResolutionRecord, error)
}

// Store is a complete backend: every repository plus lifecycle hooks.
type Store interface {
	RoomRepository
	BookingRepository
	SeriesRepository
	WaitlistRepository
	ResolutionRepository
	Ping(ctx context.Context) error
	Close() error
}
