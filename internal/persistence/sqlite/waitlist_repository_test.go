package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

func TestWaitlistRepository(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	older := scheduler.WaitlistEntry{ID: "w1", Request: newBooking("req-1", "room1", hours(9, 10)), RequestedAt: baseDay.Add(time.Hour), Status: scheduler.WaitlistPending}
	newer := scheduler.WaitlistEntry{ID: "w2", Request: newBooking("req-2", "room1", hours(9, 11)), RequestedAt: baseDay.Add(2 * time.Hour), Status: scheduler.WaitlistPending}
	elsewhere := scheduler.WaitlistEntry{ID: "w3", Request: newBooking("req-3", "room2", hours(9, 10)), RequestedAt: baseDay, Status: scheduler.WaitlistPending}

	for _, entry := range []scheduler.WaitlistEntry{newer, older, elsewhere} {
		if err := store.SaveWaitlistEntry(ctx, entry); err != nil {
			t.Fatalf("SaveWaitlistEntry failed: %v", err)
		}
	}

	pending, err := store.ListPendingWaitlist(ctx, "room1", hours(8, 18))
	if err != nil {
		t.Fatalf("ListPendingWaitlist failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "w1" || pending[1].ID != "w2" {
		t.Fatalf("expected [w1 w2], got %+v", pending)
	}

	approved, err := older.Approve(baseDay.Add(3 * time.Hour))
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if err := store.SaveWaitlistEntry(ctx, approved); err != nil {
		t.Fatalf("SaveWaitlistEntry failed: %v", err)
	}

	stored, err := store.GetWaitlistEntry(ctx, "w1")
	if err != nil {
		t.Fatalf("GetWaitlistEntry failed: %v", err)
	}
	if stored.Status != scheduler.WaitlistApproved || !stored.DecidedAt.Equal(baseDay.Add(3*time.Hour)) {
		t.Fatalf("unexpected stored entry %+v", stored)
	}
	if stored.Request.ID != "req-1" || !stored.Request.Interval.Start.Equal(hours(9, 10).Start) {
		t.Fatalf("unexpected stored request %+v", stored.Request)
	}

	pending, err = store.ListPendingWaitlist(ctx, "room1", hours(8, 18))
	if err != nil {
		t.Fatalf("ListPendingWaitlist failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "w2" {
		t.Fatalf("expected only w2 pending, got %+v", pending)
	}

	if _, err := store.GetWaitlistEntry(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolutionRepository(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := scheduler.ResolutionRecord{ID: "r1", ConflictID: "c1", Outcome: scheduler.OutcomeWaitlisted, ResolvedBy: "user-1", Timestamp: baseDay}
	second := scheduler.ResolutionRecord{ID: "r2", ConflictID: "c1", Outcome: scheduler.OutcomeCancelled, ResolvedBy: "user-1", Timestamp: baseDay.Add(time.Minute), Notes: "gave up"}

	for _, record := range []scheduler.ResolutionRecord{second, first} {
		if err := store.AppendResolution(ctx, record); err != nil {
			t.Fatalf("AppendResolution failed: %v", err)
		}
	}
	if err := store.AppendResolution(ctx, first); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on re-append, got %v", err)
	}

	records, err := store.ListResolutions(ctx, "c1")
	if err != nil {
		t.Fatalf("ListResolutions failed: %v", err)
	}
	if len(records) != 2 || records[0].ID != "r1" || records[1].Notes != "gave up" {
		t.Fatalf("unexpected records %+v", records)
	}
}
