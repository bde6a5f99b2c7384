// Package memory provides an in-process implementation of the persistence
// repositories. A single mutex serialises every write, which makes
// CommitBookings' overlap check and insert one atomic step.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

// Storage implements every persistence repository in memory.
type Storage struct {
	mu          sync.RWMutex
	rooms       map[string]persistence.Room
	bookings    map[string]scheduler.Booking
	series      map[string]persistence.Series
	waitlist    map[string]scheduler.WaitlistEntry
	resolutions []scheduler.ResolutionRecord
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		rooms:    make(map[string]persistence.Room),
		bookings: make(map[string]scheduler.Booking),
		series:   make(map[string]persistence.Series),
		waitlist: make(map[string]scheduler.WaitlistEntry),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueRoomNameLocked(room.ID, room.Name); err != nil {
		return err
	}

	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// UpdateRoom updates an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueRoomNameLocked(room.ID, room.Name); err != nil {
		return err
	}

	room.CreatedAt = existing.CreatedAt
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// ListRooms returns all rooms ordered by name then ID.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	return s.listRooms(0, false), nil
}

// ListRoomsByMinCapacity returns rooms seating at least capacity, ordered by
// capacity, then name, then ID.
func (s *Storage) ListRoomsByMinCapacity(ctx context.Context, capacity int) ([]persistence.Room, error) {
	return s.listRooms(capacity, true), nil
}

func (s *Storage) listRooms(capacity int, byCapacity bool) []persistence.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if room.Capacity < capacity {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}

	sort.Slice(rooms, func(i, j int) bool {
		if byCapacity && rooms[i].Capacity != rooms[j].Capacity {
			return rooms[i].Capacity < rooms[j].Capacity
		}
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})

	return rooms
}

// DeleteRoom removes a room that has no confirmed bookings.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, booking := range s.bookings {
		if booking.ResourceID == id && booking.Status == scheduler.StatusConfirmed {
			return persistence.ErrForeignKeyViolation
		}
	}

	delete(s.rooms, id)
	return nil
}

func (s *Storage) ensureUniqueRoomNameLocked(id, name string) error {
	for _, room := range s.rooms {
		if room.ID != id && room.Name == name {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- BookingRepository implementation ---

// ListConfirmedBookings returns confirmed bookings of resourceID overlapping window.
func (s *Storage) ListConfirmedBookings(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bookings []scheduler.Booking
	for _, booking := range s.bookings {
		if booking.ResourceID != resourceID || booking.Status != scheduler.StatusConfirmed {
			continue
		}
		if !scheduler.Overlaps(booking.Interval, window) {
			continue
		}
		bookings = append(bookings, booking)
	}
	sortBookings(bookings)
	return bookings, nil
}

// CommitBookings writes the commit atomically. The overlap check runs under
// the same lock as the insert.
func (s *Storage) CommitBookings(ctx context.Context, commit persistence.BookingCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	displaced := make(map[string]struct{}, len(commit.Displace))
	for _, id := range commit.Displace {
		booking, ok := s.bookings[id]
		if !ok {
			return fmt.Errorf("displace booking %s: %w", id, persistence.ErrNotFound)
		}
		if booking.Status == scheduler.StatusConfirmed {
			displaced[id] = struct{}{}
		}
	}

	for i, candidate := range commit.Bookings {
		if !candidate.Interval.Valid() {
			return persistence.ErrConstraintViolation
		}
		if _, ok := s.bookings[candidate.ID]; ok {
			return persistence.ErrDuplicate
		}
		if _, ok := s.rooms[candidate.ResourceID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
		for _, existing := range s.bookings {
			if _, skip := displaced[existing.ID]; skip {
				continue
			}
			if existing.Status == scheduler.StatusConfirmed && existing.ResourceID == candidate.ResourceID && scheduler.Overlaps(existing.Interval, candidate.Interval) {
				return persistence.ErrConstraintViolation
			}
		}
		for _, sibling := range commit.Bookings[:i] {
			if sibling.ResourceID == candidate.ResourceID && scheduler.Overlaps(sibling.Interval, candidate.Interval) {
				return persistence.ErrConstraintViolation
			}
		}
	}

	if commit.Series != nil {
		if _, ok := s.series[commit.Series.ID]; ok {
			return persistence.ErrDuplicate
		}
		s.series[commit.Series.ID] = cloneSeries(*commit.Series)
	}
	for id := range displaced {
		booking := s.bookings[id]
		booking.Status = scheduler.StatusCancelled
		s.bookings[id] = booking
	}
	for _, booking := range commit.Bookings {
		booking.Status = scheduler.StatusConfirmed
		s.bookings[booking.ID] = booking
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (scheduler.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return scheduler.Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

// ListSeriesBookings returns every booking of a recurring group ordered by start.
func (s *Storage) ListSeriesBookings(ctx context.Context, groupID string) ([]scheduler.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bookings []scheduler.Booking
	for _, booking := range s.bookings {
		if groupID != "" && booking.RecurringGroupID == groupID {
			bookings = append(bookings, booking)
		}
	}
	sortBookings(bookings)
	return bookings, nil
}

// CancelBookings marks the given confirmed bookings cancelled and returns them.
// Bookings that are already cancelled or completed are left untouched.
func (s *Storage) CancelBookings(ctx context.Context, ids []string) ([]scheduler.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.bookings[id]; !ok {
			return nil, fmt.Errorf("cancel booking %s: %w", id, persistence.ErrNotFound)
		}
	}

	var cancelled []scheduler.Booking
	for _, id := range ids {
		booking := s.bookings[id]
		if booking.Status != scheduler.StatusConfirmed {
			continue
		}
		booking.Status = scheduler.StatusCancelled
		s.bookings[id] = booking
		cancelled = append(cancelled, booking)
	}
	sortBookings(cancelled)
	return cancelled, nil
}

// --- SeriesRepository implementation ---

// GetSeries retrieves a recurring series by group ID.
func (s *Storage) GetSeries(ctx context.Context, id string) (persistence.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[id]
	if !ok {
		return persistence.Series{}, persistence.ErrNotFound
	}
	return cloneSeries(series), nil
}

// --- WaitlistRepository implementation ---

// SaveWaitlistEntry inserts or replaces a waitlist entry.
func (s *Storage) SaveWaitlistEntry(ctx context.Context, entry scheduler.WaitlistEntry) error {
	if entry.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.waitlist[entry.ID] = entry
	return nil
}

// GetWaitlistEntry retrieves a waitlist entry by ID.
func (s *Storage) GetWaitlistEntry(ctx context.Context, id string) (scheduler.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.waitlist[id]
	if !ok {
		return scheduler.WaitlistEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

// ListPendingWaitlist returns pending entries for resourceID whose requested
// interval overlaps window, oldest request first.
func (s *Storage) ListPendingWaitlist(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []scheduler.WaitlistEntry
	for _, entry := range s.waitlist {
		if entry.Status != scheduler.WaitlistPending || entry.Request.ResourceID != resourceID {
			continue
		}
		if !scheduler.Overlaps(entry.Request.Interval, window) {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RequestedAt.Equal(entries[j].RequestedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].RequestedAt.Before(entries[j].RequestedAt)
	})
	return entries, nil
}

// --- ResolutionRepository implementation ---

// AppendResolution appends an audit record. Records are never updated.
func (s *Storage) AppendResolution(ctx context.Context, record scheduler.ResolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.resolutions {
		if existing.ID == record.ID {
			return persistence.ErrDuplicate
		}
	}
	s.resolutions = append(s.resolutions, record)
	return nil
}

// ListResolutions returns the audit trail of a conflict in insertion order.
func (s *Storage) ListResolutions(ctx context.Context, conflictID string) ([]scheduler.ResolutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []scheduler.ResolutionRecord
	for _, record := range s.resolutions {
		if record.ConflictID == conflictID {
			records = append(records, record)
		}
	}
	return records, nil
}

func sortBookings(bookings []scheduler.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Interval.Start.Equal(bookings[j].Interval.Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Interval.Start.Before(bookings[j].Interval.Start)
	})
}

func cloneRoom(room persistence.Room) persistence.Room {
	clone := room
	if room.Facilities != nil {
		value := *room.Facilities
		clone.Facilities = &value
	}
	return clone
}

func cloneSeries(series persistence.Series) persistence.Series {
	clone := series
	clone.Definition = cloneDefinition(series.Definition)
	return clone
}

func cloneDefinition(def recurrence.Definition) recurrence.Definition {
	clone := def
	clone.Weekdays = append([]time.Weekday(nil), def.Weekdays...)
	clone.ExceptionDates = append([]time.Time(nil), def.ExceptionDates...)
	return clone
}

var (
	_ persistence.RoomRepository       = (*Storage)(nil)
	_ persistence.BookingRepository    = (*Storage)(nil)
	_ persistence.SeriesRepository     = (*Storage)(nil)
	_ persistence.WaitlistRepository   = (*Storage)(nil)
	_ persistence.ResolutionRepository = (*Storage)(nil)
)
