package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

func TestStore_Server(t *testing.T) {
	dsn := os.Getenv("BOOKING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOOKING_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("expected postgres connection, got %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx, zap.NewNop()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	suffix := uuid.NewString()
	day := time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)
	room := persistence.Room{ID: "room-" + suffix, Name: "Room " + suffix, Location: "HQ", Capacity: 6, CreatedAt: day, UpdatedAt: day}
	if err := store.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := store.CreateRoom(ctx, persistence.Room{ID: "other-" + suffix, Name: room.Name, Capacity: 2, CreatedAt: day, UpdatedAt: day}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated name, got %v", err)
	}

	booking := func(id string, fromHour, toHour int) scheduler.Booking {
		return scheduler.Booking{
			ID:         id + "-" + suffix,
			ResourceID: room.ID,
			Title:      "Sync",
			OwnerID:    "alice",
			Interval:   scheduler.TimeInterval{Start: day.Add(time.Duration(fromHour) * time.Hour), End: day.Add(time.Duration(toHour) * time.Hour)},
			Priority:   scheduler.PriorityNormal,
			Status:     scheduler.StatusConfirmed,
			CreatedAt:  day,
		}
	}

	series := persistence.Series{
		ID:         "series-" + suffix,
		ResourceID: room.ID,
		OwnerID:    "alice",
		Title:      "Sync",
		Definition: recurrence.Definition{
			Frequency: recurrence.FrequencyWeekly,
			Interval:  1,
			Weekdays:  []time.Weekday{time.Monday},
			End:       recurrence.AfterDate(day.AddDate(0, 1, 0)),
		},
		StartsOn:  day,
		Slot:      recurrence.TimeSlot{Start: 9 * time.Hour, End: 10 * time.Hour},
		CreatedAt: day,
	}
	first := booking("first", 9, 10)
	first.RecurringGroupID = series.ID
	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{first}, Series: &series}); err != nil {
		t.Fatalf("CommitBookings failed: %v", err)
	}

	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{booking("overlap", 9, 11)}}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for overlap, got %v", err)
	}
	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{first}}); err == nil {
		t.Fatalf("expected repeated booking id to fail")
	}

	stored, err := store.GetSeries(ctx, series.ID)
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if len(stored.Definition.Weekdays) != 1 || stored.Definition.Weekdays[0] != time.Monday || stored.Slot != series.Slot {
		t.Fatalf("unexpected series %+v", stored)
	}

	moved := booking("moved", 9, 10)
	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{moved}, Displace: []string{first.ID}}); err != nil {
		t.Fatalf("expected displacing commit to succeed, got %v", err)
	}
	if got, err := store.GetBooking(ctx, first.ID); err != nil || got.Status != scheduler.StatusCancelled {
		t.Fatalf("expected displaced booking cancelled, got %v %+v", err, got)
	}

	entry := scheduler.WaitlistEntry{ID: "wl-" + suffix, Request: booking("waiting", 9, 10), RequestedAt: day, Status: scheduler.WaitlistPending}
	if err := store.SaveWaitlistEntry(ctx, entry); err != nil {
		t.Fatalf("SaveWaitlistEntry failed: %v", err)
	}
	pending, err := store.ListPendingWaitlist(ctx, room.ID, moved.Interval)
	if err != nil || len(pending) != 1 || pending[0].ID != entry.ID {
		t.Fatalf("expected one pending entry, got %v %+v", err, pending)
	}

	cancelled, err := store.CancelBookings(ctx, []string{moved.ID})
	if err != nil || len(cancelled) != 1 {
		t.Fatalf("expected one cancelled booking, got %v %+v", err, cancelled)
	}
	if _, err := store.CancelBookings(ctx, []string{"missing-" + suffix}); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteRoom(ctx, "missing-"+suffix); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting a missing room, got %v", err)
	}
}
