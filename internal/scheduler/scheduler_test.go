package scheduler

import (
	"context"
	"errors"
	"time"
)

var day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func span(startHour, startMinute, endHour, endMinute int) TimeInterval {
	return TimeInterval{Start: at(startHour, startMinute), End: at(endHour, endMinute)}
}

func confirmed(id, resourceID string, interval TimeInterval, priority Priority) Booking {
	return Booking{
		ID:         id,
		ResourceID: resourceID,
		Interval:   interval,
		Priority:   priority,
		Status:     StatusConfirmed,
	}
}

type stubStore struct {
	bookings []Booking
	err      error
	calls    int
}

func (s *stubStore) ListConfirmedBookings(_ context.Context, resourceID string, window TimeInterval) ([]Booking, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []Booking
	for _, booking := range s.bookings {
		if booking.ResourceID == resourceID && booking.Status == StatusConfirmed && Overlaps(booking.Interval, window) {
			out = append(out, booking)
		}
	}
	return out, nil
}

type stubCatalog struct {
	resources []Resource
	err       error
}

func (s *stubCatalog) ListResourcesByMinCapacity(_ context.Context, capacity int) ([]Resource, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Resource
	for _, resource := range s.resources {
		if resource.Capacity >= capacity {
			out = append(out, resource)
		}
	}
	return out, nil
}

var errStoreDown = errors.New("store down")
