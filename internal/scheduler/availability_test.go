package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		bookings []Booking
		want     Availability
	}{
		{name: "no bookings", want: Available},
		{
			name:     "outside business hours only",
			bookings: []Booking{confirmed("b1", "room-a", span(6, 0, 8, 0), PriorityNormal)},
			want:     Available,
		},
		{
			name: "479 of 600 minutes",
			bookings: []Booking{
				confirmed("b1", "room-a", span(8, 0, 15, 0), PriorityNormal),
				confirmed("b2", "room-a", span(15, 0, 15, 59), PriorityNormal),
			},
			want: Partial,
		},
		{
			name:     "480 of 600 minutes",
			bookings: []Booking{confirmed("b1", "room-a", span(8, 0, 16, 0), PriorityNormal)},
			want:     Booked,
		},
		{
			name:     "spills over window edges",
			bookings: []Booking{confirmed("b1", "room-a", span(7, 0, 19, 0), PriorityNormal)},
			want:     Booked,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			aggregator := NewAggregator(&stubStore{bookings: tc.bookings})
			got, err := aggregator.Classify(context.Background(), "room-a", day, DefaultBusinessWindow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifyCoverageThreshold(t *testing.T) {
	t.Parallel()

	if got := ClassifyCoverage(480, 600); got != Booked {
		t.Fatalf("expected Booked at the threshold, got %s", got)
	}
	if got := ClassifyCoverage(479, 600); got != Partial {
		t.Fatalf("expected Partial below the threshold, got %s", got)
	}
	if got := ClassifyCoverage(0, 600); got != Available {
		t.Fatalf("expected Available with no coverage, got %s", got)
	}
}

func TestClassifyRangeUsesSingleRead(t *testing.T) {
	t.Parallel()

	store := &stubStore{bookings: []Booking{
		confirmed("b1", "room-a", span(8, 0, 18, 0), PriorityNormal),
		confirmed("b2", "room-a", TimeInterval{Start: at(9, 0).AddDate(0, 0, 1), End: at(10, 0).AddDate(0, 0, 1)}, PriorityNormal),
	}}
	aggregator := NewAggregator(store)

	days, err := aggregator.ClassifyRange(context.Background(), "room-a", day.Add(13*time.Hour), 3, DefaultBusinessWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one repository read, got %d", store.calls)
	}
	want := []Availability{Booked, Partial, Available}
	for i, d := range days {
		if d.Availability != want[i] {
			t.Fatalf("day %d: expected %s, got %s", i, want[i], d.Availability)
		}
		if !d.Date.Equal(day.AddDate(0, 0, i)) {
			t.Fatalf("day %d: expected date %s, got %s", i, day.AddDate(0, 0, i), d.Date)
		}
	}
	if days[1].BookedMinutes != 60 {
		t.Fatalf("expected 60 booked minutes on day 2, got %d", days[1].BookedMinutes)
	}
}

func TestClassifyRejectsBadInput(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(&stubStore{})
	if _, err := aggregator.Classify(context.Background(), "room-a", day, BusinessWindow{Start: 18 * time.Hour, End: 8 * time.Hour}); !errors.Is(err, ErrInvalidBusinessWindow) {
		t.Fatalf("expected ErrInvalidBusinessWindow, got %v", err)
	}
	if _, err := aggregator.ClassifyRange(context.Background(), "room-a", day, 0, DefaultBusinessWindow); err == nil {
		t.Fatalf("expected error for zero days")
	}
}
