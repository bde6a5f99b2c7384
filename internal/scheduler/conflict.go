package scheduler

import (
	"context"
	"fmt"
	"sort"
)

// BookingStore is the read side of booking storage consumed by the engine.
// Implementations return Confirmed bookings of resourceID whose interval
// overlaps window; callers still re-filter in memory.
type BookingStore interface {
	ListConfirmedBookings(ctx context.Context, resourceID string, window TimeInterval) ([]Booking, error)
}

// Detector finds confirmed bookings that collide with a candidate interval.
type Detector struct {
	store BookingStore
}

// NewDetector constructs a Detector backed by store.
func NewDetector(store BookingStore) *Detector {
	return &Detector{store: store}
}

// FindConflicts returns the Confirmed bookings of resourceID overlapping
// interval, excluding excludeBookingID when it is non-empty. Results are
// ordered by start time, then ID.
func (d *Detector) FindConflicts(ctx context.Context, resourceID string, interval TimeInterval, excludeBookingID string) ([]Booking, error) {
	if !interval.Valid() {
		return nil, ErrInvalidInterval
	}
	if d == nil || d.store == nil {
		return nil, fmt.Errorf("scheduler: detector has no booking store")
	}

	existing, err := d.store.ListConfirmedBookings(ctx, resourceID, interval)
	if err != nil {
		return nil, fmt.Errorf("list confirmed bookings: %w", err)
	}
	return DetectConflicts(existing, resourceID, interval, excludeBookingID), nil
}

// DetectConflicts filters existing down to the Confirmed bookings of
// resourceID that overlap interval. It never mutates existing.
func DetectConflicts(existing []Booking, resourceID string, interval TimeInterval, excludeBookingID string) []Booking {
	var conflicts []Booking
	for _, booking := range existing {
		if booking.Status != StatusConfirmed || booking.ResourceID != resourceID {
			continue
		}
		if excludeBookingID != "" && booking.ID == excludeBookingID {
			continue
		}
		if !Overlaps(booking.Interval, interval) {
			continue
		}
		conflicts = append(conflicts, booking)
	}
	sortByStart(conflicts)
	return conflicts
}

func sortByStart(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		if !bookings[i].Interval.Start.Equal(bookings[j].Interval.Start) {
			return bookings[i].Interval.Start.Before(bookings[j].Interval.Start)
		}
		return bookings[i].ID < bookings[j].ID
	})
}
