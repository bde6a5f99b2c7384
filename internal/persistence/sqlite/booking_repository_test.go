package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

func TestBookingRepository_CommitAndList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Room 1", 6)

	commit := persistence.BookingCommit{Bookings: []scheduler.Booking{
		newBooking("b2", "room1", hours(11, 12)),
		newBooking("b1", "room1", hours(9, 10)),
	}}
	if err := store.CommitBookings(ctx, commit); err != nil {
		t.Fatalf("CommitBookings failed: %v", err)
	}

	bookings, err := store.ListConfirmedBookings(ctx, "room1", hours(8, 18))
	if err != nil {
		t.Fatalf("ListConfirmedBookings failed: %v", err)
	}
	if len(bookings) != 2 || bookings[0].ID != "b1" || bookings[1].ID != "b2" {
		t.Fatalf("expected [b1 b2], got %+v", bookings)
	}
	if bookings[0].Priority != scheduler.PriorityNormal || bookings[0].Status != scheduler.StatusConfirmed {
		t.Fatalf("unexpected booking fields %+v", bookings[0])
	}

	touching, err := store.ListConfirmedBookings(ctx, "room1", hours(10, 11))
	if err != nil {
		t.Fatalf("ListConfirmedBookings failed: %v", err)
	}
	if len(touching) != 0 {
		t.Fatalf("expected touching bookings to be excluded, got %+v", touching)
	}
}

func TestBookingRepository_CommitRejectsOverlap(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Room 1", 6)

	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{newBooking("b1", "room1", hours(9, 11))}}); err != nil {
		t.Fatalf("CommitBookings failed: %v", err)
	}

	batch := persistence.BookingCommit{Bookings: []scheduler.Booking{
		newBooking("b2", "room1", hours(12, 13)),
		newBooking("b3", "room1", hours(10, 12)),
	}}
	if err := store.CommitBookings(ctx, batch); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	if _, err := store.GetBooking(ctx, "b2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected no partial commit, got %v", err)
	}

	siblings := persistence.BookingCommit{Bookings: []scheduler.Booking{
		newBooking("b4", "room1", hours(14, 16)),
		newBooking("b5", "room1", hours(15, 17)),
	}}
	if err := store.CommitBookings(ctx, siblings); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for overlapping siblings, got %v", err)
	}
}

func TestBookingRepository_CommitDisplacesBookings(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Room 1", 6)

	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{newBooking("low", "room1", hours(9, 10))}}); err != nil {
		t.Fatalf("CommitBookings failed: %v", err)
	}

	override := newBooking("high", "room1", hours(9, 10))
	override.Priority = scheduler.PriorityCritical
	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{override}, Displace: []string{"low"}}); err != nil {
		t.Fatalf("CommitBookings with displacement failed: %v", err)
	}

	displaced, err := store.GetBooking(ctx, "low")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if displaced.Status != scheduler.StatusCancelled {
		t.Fatalf("expected displaced booking to be cancelled, got %s", displaced.Status)
	}

	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{newBooking("x", "room1", hours(12, 13))}, Displace: []string{"ghost"}}); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown displaced booking, got %v", err)
	}
}

func TestBookingRepository_ConcurrentCommitsAdmitOne(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Room 1", 6)

	const writers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			booking := newBooking(string(rune('a'+i)), "room1", hours(9, 10))
			err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{booking}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, persistence.ErrConstraintViolation) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one committed booking, got %d", succeeded)
	}
	bookings, err := store.ListConfirmedBookings(ctx, "room1", hours(0, 24))
	if err != nil {
		t.Fatalf("ListConfirmedBookings failed: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("expected one stored booking, got %d", len(bookings))
	}
}

func TestBookingRepository_SeriesRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Room 1", 6)

	series := persistence.Series{
		ID:         "series-1",
		ResourceID: "room1",
		OwnerID:    "user-1",
		Title:      "Standup",
		Definition: recurrence.Definition{
			Frequency:      recurrence.FrequencyWeekly,
			Interval:       1,
			Weekdays:       []time.Weekday{time.Monday, time.Wednesday},
			End:            recurrence.AfterDate(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)),
			ExceptionDates: []time.Time{time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)},
		},
		StartsOn:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Slot:      recurrence.TimeSlot{Start: 9 * time.Hour, End: 9*time.Hour + 15*time.Minute},
		CreatedAt: baseDay,
	}
	first := newBooking("s1", "room1", hours(9, 10))
	first.RecurringGroupID = series.ID
	second := newBooking("s2", "room1", scheduler.TimeInterval{Start: hours(9, 10).Start.AddDate(0, 0, 2), End: hours(9, 10).End.AddDate(0, 0, 2)})
	second.RecurringGroupID = series.ID

	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{first, second}, Series: &series}); err != nil {
		t.Fatalf("CommitBookings failed: %v", err)
	}

	stored, err := store.GetSeries(ctx, "series-1")
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if len(stored.Definition.Weekdays) != 2 || stored.Definition.Weekdays[0] != time.Monday || stored.Definition.Weekdays[1] != time.Wednesday {
		t.Fatalf("unexpected weekdays %v", stored.Definition.Weekdays)
	}
	if stored.Definition.End.Kind != recurrence.EndAfterDate || !stored.Definition.End.Until.Equal(series.Definition.End.Until) {
		t.Fatalf("unexpected end condition %+v", stored.Definition.End)
	}
	if len(stored.Definition.ExceptionDates) != 1 || stored.Slot != series.Slot {
		t.Fatalf("unexpected series %+v", stored)
	}

	instances, err := store.ListSeriesBookings(ctx, "series-1")
	if err != nil {
		t.Fatalf("ListSeriesBookings failed: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("expected 2 series bookings, got %d", len(instances))
	}

	cancelled, err := store.CancelBookings(ctx, []string{"s1", "s2"})
	if err != nil {
		t.Fatalf("CancelBookings failed: %v", err)
	}
	if len(cancelled) != 2 || cancelled[0].Status != scheduler.StatusCancelled {
		t.Fatalf("expected both bookings cancelled, got %+v", cancelled)
	}
	again, err := store.CancelBookings(ctx, []string{"s1"})
	if err != nil {
		t.Fatalf("CancelBookings failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected repeated cancellation to be a no-op, got %+v", again)
	}
	if _, err := store.CancelBookings(ctx, []string{"ghost"}); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
