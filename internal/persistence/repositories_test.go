package persistence_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

type store = persistence.Store

var reference = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

func backends() map[string]func(t *testing.T) store {
	return map[string]func(t *testing.T) store{
		"memory": func(t *testing.T) store {
			return memory.New()
		},
		"sqlite": func(t *testing.T) store {
			t.Helper()
			db, err := sqlite.Open(filepath.Join(t.TempDir(), "contract.db"))
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })
			if err := db.Migrate(context.Background(), zap.NewNop()); err != nil {
				t.Fatalf("Migrate failed: %v", err)
			}
			return db
		},
	}
}

func window(startHour, endHour int) scheduler.TimeInterval {
	return scheduler.TimeInterval{
		Start: reference.Add(time.Duration(startHour) * time.Hour),
		End:   reference.Add(time.Duration(endHour) * time.Hour),
	}
}

func booking(id, room string, interval scheduler.TimeInterval) scheduler.Booking {
	return scheduler.Booking{
		ID:         id,
		ResourceID: room,
		Title:      "Review " + id,
		OwnerID:    "owner-1",
		Interval:   interval,
		Priority:   scheduler.PriorityNormal,
		Status:     scheduler.StatusConfirmed,
		CreatedAt:  reference,
	}
}

func mustCreateRoom(t *testing.T, s store, id, name string, capacity int) {
	t.Helper()
	room := persistence.Room{ID: id, Name: name, Location: "HQ", Capacity: capacity, CreatedAt: reference, UpdatedAt: reference}
	if err := s.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom(%s) failed: %v", id, err)
	}
}

func TestRoomRepositoryContract(t *testing.T) {
	t.Parallel()

	for name, open := range backends() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := open(t)
			mustCreateRoom(t, s, "room-b", "Birch", 8)
			mustCreateRoom(t, s, "room-a", "Aspen", 4)
			mustCreateRoom(t, s, "room-c", "Cedar", 8)

			room := persistence.Room{ID: "room-x", Name: "Aspen", Capacity: 2, CreatedAt: reference, UpdatedAt: reference}
			if err := s.CreateRoom(ctx, room); !errors.Is(err, persistence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate for repeated name, got %v", err)
			}

			rooms, err := s.ListRoomsByMinCapacity(ctx, 5)
			if err != nil {
				t.Fatalf("ListRoomsByMinCapacity failed: %v", err)
			}
			if len(rooms) != 2 || rooms[0].ID != "room-b" || rooms[1].ID != "room-c" {
				t.Fatalf("expected Birch then Cedar, got %#v", rooms)
			}

			facilities := "projector"
			updated := persistence.Room{ID: "room-a", Name: "Aspen", Capacity: 6, Facilities: &facilities, CreatedAt: reference, UpdatedAt: reference.Add(time.Hour)}
			if err := s.UpdateRoom(ctx, updated); err != nil {
				t.Fatalf("UpdateRoom failed: %v", err)
			}
			fetched, err := s.GetRoom(ctx, "room-a")
			if err != nil {
				t.Fatalf("GetRoom failed: %v", err)
			}
			if fetched.Capacity != 6 || fetched.Facilities == nil || *fetched.Facilities != "projector" {
				t.Fatalf("unexpected room after update: %#v", fetched)
			}

			if err := s.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{booking("b-1", "room-a", window(9, 10))}}); err != nil {
				t.Fatalf("CommitBookings failed: %v", err)
			}
			if err := s.DeleteRoom(ctx, "room-a"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
				t.Fatalf("expected ErrForeignKeyViolation while bookings exist, got %v", err)
			}
			if err := s.DeleteRoom(ctx, "room-c"); err != nil {
				t.Fatalf("DeleteRoom failed: %v", err)
			}
			if _, err := s.GetRoom(ctx, "room-c"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBookingRepositoryContract(t *testing.T) {
	t.Parallel()

	for name, open := range backends() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := open(t)
			mustCreateRoom(t, s, "room-a", "Aspen", 4)
			mustCreateRoom(t, s, "room-b", "Birch", 8)

			first := persistence.BookingCommit{Bookings: []scheduler.Booking{
				booking("b-1", "room-a", window(9, 10)),
				booking("b-2", "room-a", window(10, 11)),
				booking("b-3", "room-b", window(9, 10)),
			}}
			if err := s.CommitBookings(ctx, first); err != nil {
				t.Fatalf("CommitBookings failed: %v", err)
			}

			overlapping := persistence.BookingCommit{Bookings: []scheduler.Booking{
				booking("b-4", "room-b", window(13, 14)),
				booking("b-5", "room-a", window(9, 10).Shift(reference.Add(9*time.Hour+30*time.Minute))),
			}}
			if err := s.CommitBookings(ctx, overlapping); !errors.Is(err, persistence.ErrConstraintViolation) {
				t.Fatalf("expected ErrConstraintViolation, got %v", err)
			}
			if _, err := s.GetBooking(ctx, "b-4"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected rejected commit to write nothing, got %v", err)
			}

			siblings := persistence.BookingCommit{Bookings: []scheduler.Booking{
				booking("b-6", "room-b", window(14, 15)),
				booking("b-7", "room-b", window(14, 16)),
			}}
			if err := s.CommitBookings(ctx, siblings); !errors.Is(err, persistence.ErrConstraintViolation) {
				t.Fatalf("expected sibling overlap to be rejected, got %v", err)
			}

			listed, err := s.ListConfirmedBookings(ctx, "room-a", window(8, 18))
			if err != nil {
				t.Fatalf("ListConfirmedBookings failed: %v", err)
			}
			if len(listed) != 2 || listed[0].ID != "b-1" || listed[1].ID != "b-2" {
				t.Fatalf("expected b-1 then b-2, got %#v", listed)
			}

			override := booking("b-8", "room-a", window(9, 10))
			override.Priority = scheduler.PriorityCritical
			if err := s.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{override}, Displace: []string{"b-1"}}); err != nil {
				t.Fatalf("displacing commit failed: %v", err)
			}
			displaced, err := s.GetBooking(ctx, "b-1")
			if err != nil {
				t.Fatalf("GetBooking failed: %v", err)
			}
			if displaced.Status != scheduler.StatusCancelled {
				t.Fatalf("expected b-1 cancelled, got %s", displaced.Status)
			}

			cancelled, err := s.CancelBookings(ctx, []string{"b-2", "b-1"})
			if err != nil {
				t.Fatalf("CancelBookings failed: %v", err)
			}
			if len(cancelled) != 1 || cancelled[0].ID != "b-2" {
				t.Fatalf("expected only b-2 to change state, got %#v", cancelled)
			}
			if _, err := s.CancelBookings(ctx, []string{"missing"}); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSeriesCommitContract(t *testing.T) {
	t.Parallel()

	for name, open := range backends() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := open(t)
			mustCreateRoom(t, s, "room-a", "Aspen", 4)

			series := persistence.Series{
				ID:         "series-1",
				ResourceID: "room-a",
				OwnerID:    "owner-1",
				Title:      "Standup",
				Definition: recurrence.Definition{
					Frequency:      recurrence.FrequencyWeekly,
					Interval:       1,
					Weekdays:       []time.Weekday{time.Tuesday, time.Thursday},
					End:            recurrence.AfterOccurrences(2),
					ExceptionDates: []time.Time{time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)},
				},
				StartsOn:  reference,
				Slot:      recurrence.TimeSlot{Start: 9 * time.Hour, End: 9*time.Hour + 15*time.Minute},
				CreatedAt: reference,
			}
			first := booking("s-1", "room-a", window(9, 10))
			first.RecurringGroupID = series.ID
			second := booking("s-2", "room-a", scheduler.TimeInterval{Start: reference.AddDate(0, 0, 2).Add(9 * time.Hour), End: reference.AddDate(0, 0, 2).Add(10 * time.Hour)})
			second.RecurringGroupID = series.ID

			if err := s.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{second, first}, Series: &series}); err != nil {
				t.Fatalf("CommitBookings failed: %v", err)
			}

			stored, err := s.GetSeries(ctx, series.ID)
			if err != nil {
				t.Fatalf("GetSeries failed: %v", err)
			}
			if stored.Definition.Frequency != recurrence.FrequencyWeekly || len(stored.Definition.Weekdays) != 2 {
				t.Fatalf("unexpected definition: %#v", stored.Definition)
			}
			if stored.Definition.End.Kind != recurrence.EndAfterOccurrences || stored.Definition.End.Count != 2 {
				t.Fatalf("unexpected end: %#v", stored.Definition.End)
			}
			if len(stored.Definition.ExceptionDates) != 1 || !stored.Definition.ExceptionDates[0].Equal(series.Definition.ExceptionDates[0]) {
				t.Fatalf("unexpected exception dates: %v", stored.Definition.ExceptionDates)
			}
			if stored.Slot != series.Slot {
				t.Fatalf("expected slot %+v, got %+v", series.Slot, stored.Slot)
			}

			instances, err := s.ListSeriesBookings(ctx, series.ID)
			if err != nil {
				t.Fatalf("ListSeriesBookings failed: %v", err)
			}
			if len(instances) != 2 || instances[0].ID != "s-1" || instances[1].ID != "s-2" {
				t.Fatalf("expected instances ordered by start, got %#v", instances)
			}
		})
	}
}

func TestWaitlistAndResolutionContract(t *testing.T) {
	t.Parallel()

	for name, open := range backends() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			s := open(t)

			older := scheduler.WaitlistEntry{ID: "w-1", Request: booking("r-1", "room-a", window(9, 10)), RequestedAt: reference.Add(time.Minute), Status: scheduler.WaitlistPending}
			newer := scheduler.WaitlistEntry{ID: "w-2", Request: booking("r-2", "room-a", window(9, 11)), RequestedAt: reference.Add(2 * time.Minute), Status: scheduler.WaitlistPending}
			other := scheduler.WaitlistEntry{ID: "w-3", Request: booking("r-3", "room-b", window(9, 10)), RequestedAt: reference, Status: scheduler.WaitlistPending}
			for _, entry := range []scheduler.WaitlistEntry{newer, older, other} {
				if err := s.SaveWaitlistEntry(ctx, entry); err != nil {
					t.Fatalf("SaveWaitlistEntry failed: %v", err)
				}
			}

			pending, err := s.ListPendingWaitlist(ctx, "room-a", window(9, 10))
			if err != nil {
				t.Fatalf("ListPendingWaitlist failed: %v", err)
			}
			if len(pending) != 2 || pending[0].ID != "w-1" || pending[1].ID != "w-2" {
				t.Fatalf("expected oldest first, got %#v", pending)
			}

			approved, err := older.Approve(reference.Add(time.Hour))
			if err != nil {
				t.Fatalf("Approve failed: %v", err)
			}
			if err := s.SaveWaitlistEntry(ctx, approved); err != nil {
				t.Fatalf("SaveWaitlistEntry failed: %v", err)
			}
			fetched, err := s.GetWaitlistEntry(ctx, "w-1")
			if err != nil {
				t.Fatalf("GetWaitlistEntry failed: %v", err)
			}
			if fetched.Status != scheduler.WaitlistApproved || fetched.DecidedAt.IsZero() {
				t.Fatalf("expected approved entry, got %#v", fetched)
			}

			for i, outcome := range []scheduler.Outcome{scheduler.OutcomeWaitlisted, scheduler.OutcomeOverride} {
				record, err := scheduler.NewResolutionRecord("res-"+string(outcome), "conflict-1", outcome, "owner-1", "", reference.Add(time.Duration(i)*time.Minute))
				if err != nil {
					t.Fatalf("NewResolutionRecord failed: %v", err)
				}
				if err := s.AppendResolution(ctx, record); err != nil {
					t.Fatalf("AppendResolution failed: %v", err)
				}
			}
			records, err := s.ListResolutions(ctx, "conflict-1")
			if err != nil {
				t.Fatalf("ListResolutions failed: %v", err)
			}
			if len(records) != 2 || records[0].Outcome != scheduler.OutcomeWaitlisted || records[1].Outcome != scheduler.OutcomeOverride {
				t.Fatalf("unexpected audit trail: %#v", records)
			}
		})
	}
}
