package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidInterval indicates an interval whose start is not before its end.
var ErrInvalidInterval = errors.New("scheduler: interval start must be before end")

// TimeInterval is a half-open range [Start, End). Intervals that only touch at
// an endpoint do not overlap.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// NewInterval returns the interval [start, end) or ErrInvalidInterval.
func NewInterval(start, end time.Time) (TimeInterval, error) {
	interval := TimeInterval{Start: start, End: end}
	if !interval.Valid() {
		return TimeInterval{}, ErrInvalidInterval
	}
	return interval, nil
}

// Valid reports whether the interval is well formed.
func (i TimeInterval) Valid() bool {
	return !i.Start.IsZero() && i.Start.Before(i.End)
}

// Duration returns the length of the interval.
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Shift returns the interval moved so that it starts at start while keeping its length.
func (i TimeInterval) Shift(start time.Time) TimeInterval {
	return TimeInterval{Start: start, End: start.Add(i.Duration())}
}

// Overlaps reports whether a and b share any instant.
func Overlaps(a, b TimeInterval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// CoveredMinutes returns how many whole minutes of interval fall inside
// [windowStart, windowEnd). Disjoint ranges yield zero.
func CoveredMinutes(interval TimeInterval, windowStart, windowEnd time.Time) int {
	start := interval.Start
	if windowStart.After(start) {
		start = windowStart
	}
	end := interval.End
	if windowEnd.Before(end) {
		end = windowEnd
	}
	if !start.Before(end) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// DateOf truncates t to midnight of its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
