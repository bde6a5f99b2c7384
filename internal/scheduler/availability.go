package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Availability summarises how much of a business window a resource is booked.
type Availability string

const (
	Available Availability = "available"
	Partial   Availability = "partial"
	Booked    Availability = "booked"
)

// BookedThreshold is the coverage ratio at or above which a day counts as Booked.
const BookedThreshold = 0.8

// ErrInvalidBusinessWindow indicates a window that is empty or leaves the day.
var ErrInvalidBusinessWindow = errors.New("scheduler: business window must start before it ends within one day")

// BusinessWindow is the bookable part of a day, expressed as offsets from midnight.
type BusinessWindow struct {
	Start time.Duration
	End   time.Duration
}

// DefaultBusinessWindow spans 08:00 to 18:00.
var DefaultBusinessWindow = BusinessWindow{Start: 8 * time.Hour, End: 18 * time.Hour}

// Validate reports ErrInvalidBusinessWindow for malformed windows.
func (w BusinessWindow) Validate() error {
	if w.Start < 0 || w.End > 24*time.Hour || w.Start >= w.End {
		return ErrInvalidBusinessWindow
	}
	return nil
}

// On anchors the window to the calendar day of date.
func (w BusinessWindow) On(date time.Time) TimeInterval {
	day := DateOf(date)
	return TimeInterval{Start: day.Add(w.Start), End: day.Add(w.End)}
}

// Minutes returns the window length in minutes.
func (w BusinessWindow) Minutes() int {
	return int((w.End - w.Start) / time.Minute)
}

// DayAvailability pairs a calendar day with its classification.
type DayAvailability struct {
	Date          time.Time
	Availability  Availability
	BookedMinutes int
}

// Aggregator classifies resource-days.
type Aggregator struct {
	store BookingStore
}

// NewAggregator constructs an Aggregator backed by store.
func NewAggregator(store BookingStore) *Aggregator {
	return &Aggregator{store: store}
}

// Classify returns the availability of resourceID on the calendar day of date.
func (a *Aggregator) Classify(ctx context.Context, resourceID string, date time.Time, window BusinessWindow) (Availability, error) {
	days, err := a.ClassifyRange(ctx, resourceID, date, 1, window)
	if err != nil {
		return "", err
	}
	return days[0].Availability, nil
}

// ClassifyRange classifies days consecutive calendar days starting at from,
// using a single storage read.
func (a *Aggregator) ClassifyRange(ctx context.Context, resourceID string, from time.Time, days int, window BusinessWindow) ([]DayAvailability, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("scheduler: day count must be positive")
	}
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("scheduler: aggregator has no booking store")
	}

	first := DateOf(from)
	span := TimeInterval{
		Start: window.On(first).Start,
		End:   window.On(first.AddDate(0, 0, days-1)).End,
	}
	bookings, err := a.store.ListConfirmedBookings(ctx, resourceID, span)
	if err != nil {
		return nil, fmt.Errorf("list confirmed bookings: %w", err)
	}

	result := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i)
		covered := BookedMinutes(bookings, resourceID, window.On(day))
		result = append(result, DayAvailability{
			Date:          day,
			Availability:  ClassifyCoverage(covered, window.Minutes()),
			BookedMinutes: covered,
		})
	}
	return result, nil
}

// BookedMinutes sums the minutes of window covered by the Confirmed bookings of resourceID.
// Confirmed bookings of one resource never overlap, so a plain sum is exact.
func BookedMinutes(bookings []Booking, resourceID string, window TimeInterval) int {
	total := 0
	for _, booking := range bookings {
		if booking.Status != StatusConfirmed || booking.ResourceID != resourceID {
			continue
		}
		total += CoveredMinutes(booking.Interval, window.Start, window.End)
	}
	return total
}

// ClassifyCoverage maps covered minutes of a window of windowMinutes to an Availability.
func ClassifyCoverage(covered, windowMinutes int) Availability {
	if covered <= 0 || windowMinutes <= 0 {
		return Available
	}
	ratio := float64(covered) / float64(windowMinutes)
	if ratio < BookedThreshold {
		return Partial
	}
	return Booked
}
