package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite store in a temporary file.
type SQLiteHarness struct {
	Store *sqlite.Store

	cleanup func()
}

// Close releases the store. It is also registered with tb.Cleanup.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// SeedRooms inserts every fixture, failing tb on the first error.
func (h *SQLiteHarness) SeedRooms(tb testing.TB, rooms ...RoomFixture) {
	tb.Helper()
	for _, room := range rooms {
		if err := h.Store.CreateRoom(context.Background(), room.Persistence()); err != nil {
			tb.Fatalf("failed to seed room %s: %v", room.ID, err)
		}
	}
}

func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	store, err := sqlite.Open(filepath.Join(tb.TempDir(), "roombooking.db"))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background(), zap.NewNop()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}
