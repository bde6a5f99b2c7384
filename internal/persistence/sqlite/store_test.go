package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

var baseDay = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "booking.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background(), zap.NewNop()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return store
}

func seedRoom(t *testing.T, store *Store, id, name string, capacity int) {
	t.Helper()
	room := persistence.Room{ID: id, Name: name, Capacity: capacity, Location: "HQ", CreatedAt: baseDay, UpdatedAt: baseDay}
	if err := store.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
}

func hours(startHour, endHour int) scheduler.TimeInterval {
	return scheduler.TimeInterval{
		Start: baseDay.Add(time.Duration(startHour) * time.Hour),
		End:   baseDay.Add(time.Duration(endHour) * time.Hour),
	}
}

func newBooking(id, resourceID string, interval scheduler.TimeInterval) scheduler.Booking {
	return scheduler.Booking{
		ID:         id,
		ResourceID: resourceID,
		Title:      "Sync " + id,
		OwnerID:    "user-1",
		Interval:   interval,
		Priority:   scheduler.PriorityNormal,
		Status:     scheduler.StatusConfirmed,
		CreatedAt:  baseDay,
	}
}
