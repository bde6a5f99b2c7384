package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

func TestRoomRepository_CreateAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Conference Room A", 10)

	retrieved, err := store.GetRoom(ctx, "room1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if retrieved.Name != "Conference Room A" {
		t.Errorf("Expected name 'Conference Room A', got '%s'", retrieved.Name)
	}
	if retrieved.Capacity != 10 {
		t.Errorf("Expected capacity 10, got %d", retrieved.Capacity)
	}
	if !retrieved.CreatedAt.Equal(baseDay) {
		t.Errorf("Expected created_at %v, got %v", baseDay, retrieved.CreatedAt)
	}
}

func TestRoomRepository_Constraints(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Conference Room A", 10)

	if err := store.CreateRoom(ctx, persistence.Room{ID: "room2", Name: "Zero", Capacity: 0}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for zero capacity, got %v", err)
	}
	if err := store.CreateRoom(ctx, persistence.Room{ID: "room1", Name: "Other", Capacity: 4}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated id, got %v", err)
	}
	if err := store.CreateRoom(ctx, persistence.Room{ID: "room3", Name: "Conference Room A", Capacity: 4}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated name, got %v", err)
	}
	if _, err := store.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoomRepository_UpdateAndDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "room1", "Conference Room A", 10)

	room, err := store.GetRoom(ctx, "room1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	room.Capacity = 12
	if err := store.UpdateRoom(ctx, room); err != nil {
		t.Fatalf("UpdateRoom failed: %v", err)
	}
	if updated, _ := store.GetRoom(ctx, "room1"); updated.Capacity != 12 {
		t.Fatalf("expected capacity 12, got %d", updated.Capacity)
	}

	if err := store.UpdateRoom(ctx, persistence.Room{ID: "missing", Name: "x", Capacity: 1}); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{newBooking("b1", "room1", hours(9, 10))}}); err != nil {
		t.Fatalf("CommitBookings failed: %v", err)
	}
	if err := store.DeleteRoom(ctx, "room1"); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation while bookings exist, got %v", err)
	}
	if _, err := store.CancelBookings(ctx, []string{"b1"}); err != nil {
		t.Fatalf("CancelBookings failed: %v", err)
	}
	if err := store.DeleteRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoomRepository_ListRoomsByMinCapacity(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	seedRoom(t, store, "r-large", "Auditorium", 50)
	seedRoom(t, store, "r-small", "Booth", 2)
	seedRoom(t, store, "r-mid-b", "Beta", 8)
	seedRoom(t, store, "r-mid-a", "Alpha", 8)

	rooms, err := store.ListRoomsByMinCapacity(ctx, 4)
	if err != nil {
		t.Fatalf("ListRoomsByMinCapacity failed: %v", err)
	}
	want := []string{"r-mid-a", "r-mid-b", "r-large"}
	if len(rooms) != len(want) {
		t.Fatalf("expected %d rooms, got %d", len(want), len(rooms))
	}
	for i, room := range rooms {
		if room.ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], room.ID)
		}
	}

	all, err := store.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(all) != 4 || all[0].Name != "Alpha" {
		t.Fatalf("expected 4 rooms ordered by name, got %+v", all)
	}
}
