package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

const lockNamespace = "booking"

const bookingColumns = `id, resource_id, title, owner_id, start_time, end_time, priority, COALESCE(recurring_group_id, ''), status, created_at`

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ListConfirmedBookings returns confirmed bookings of resourceID overlapping window.
func (s *Store) ListConfirmedBookings(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.Booking, error) {
	return listConfirmed(ctx, s.pool, resourceID, window)
}

func listConfirmed(ctx context.Context, q queryer, resourceID string, window scheduler.TimeInterval) ([]scheduler.Booking, error) {
	return queryBookings(ctx, q, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE resource_id = $1 AND status = 'confirmed' AND end_time > $2 AND start_time < $3
		ORDER BY start_time, id
	`, resourceID, window.Start, window.End)
}

// CommitBookings writes the commit atomically. Each affected room is locked
// with pg_advisory_xact_lock before the overlap check; the locks are released
// when the transaction ends.
func (s *Store) CommitBookings(ctx context.Context, commit persistence.BookingCommit) error {
	for i, booking := range commit.Bookings {
		if !booking.Interval.Valid() {
			return persistence.ErrConstraintViolation
		}
		for _, sibling := range commit.Bookings[:i] {
			if sibling.ResourceID == booking.ResourceID && scheduler.Overlaps(sibling.Interval, booking.Interval) {
				return fmt.Errorf("%w: bookings %s and %s overlap", persistence.ErrConstraintViolation, sibling.ID, booking.ID)
			}
		}
	}

	resources := make([]string, 0, len(commit.Bookings))
	for _, booking := range commit.Bookings {
		resources = append(resources, booking.ResourceID)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, key := range lock.Keys(lockNamespace, resources) {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
				return fmt.Errorf("acquire room lock: %w", err)
			}
		}

		for _, id := range commit.Displace {
			tag, err := tx.Exec(ctx, `UPDATE bookings SET status = 'cancelled' WHERE id = $1 AND status = 'confirmed'`, id)
			if err != nil {
				return mapError(err)
			}
			if tag.RowsAffected() > 0 {
				continue
			}
			var exists int
			if err := tx.QueryRow(ctx, `SELECT 1 FROM bookings WHERE id = $1`, id).Scan(&exists); err != nil {
				return fmt.Errorf("displace booking %s: %w", id, mapError(err))
			}
		}

		for _, booking := range commit.Bookings {
			overlapping, err := listConfirmed(ctx, tx, booking.ResourceID, booking.Interval)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return fmt.Errorf("%w: booking %s overlaps %s", persistence.ErrConstraintViolation, booking.ID, overlapping[0].ID)
			}
		}

		if commit.Series != nil {
			if err := insertSeries(ctx, tx, *commit.Series); err != nil {
				return err
			}
		}

		batch := &pgx.Batch{}
		for _, booking := range commit.Bookings {
			batch.Queue(`
				INSERT INTO bookings (id, resource_id, title, owner_id, start_time, end_time, priority, recurring_group_id, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), 'confirmed', $9)
			`, booking.ID, booking.ResourceID, booking.Title, booking.OwnerID, booking.Interval.Start, booking.Interval.End,
				int(booking.Priority), booking.RecurringGroupID, booking.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// GetBooking retrieves a booking by ID.
func (s *Store) GetBooking(ctx context.Context, id string) (scheduler.Booking, error) {
	bookings, err := queryBookings(ctx, s.pool, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		return scheduler.Booking{}, err
	}
	if len(bookings) == 0 {
		return scheduler.Booking{}, persistence.ErrNotFound
	}
	return bookings[0], nil
}

// ListSeriesBookings returns every booking of a recurring group ordered by start.
func (s *Store) ListSeriesBookings(ctx context.Context, groupID string) ([]scheduler.Booking, error) {
	return queryBookings(ctx, s.pool, `SELECT `+bookingColumns+` FROM bookings WHERE recurring_group_id = $1 ORDER BY start_time, id`, groupID)
}

// CancelBookings marks the given confirmed bookings cancelled and returns them.
func (s *Store) CancelBookings(ctx context.Context, ids []string) ([]scheduler.Booking, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var cancelled []scheduler.Booking
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var found int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ANY($1)`, ids).Scan(&found); err != nil {
			return mapError(err)
		}
		if found != len(uniqueStrings(ids)) {
			return fmt.Errorf("cancel bookings: %w", persistence.ErrNotFound)
		}

		var err error
		cancelled, err = queryBookings(ctx, tx, `
			UPDATE bookings SET status = 'cancelled'
			WHERE id = ANY($1) AND status = 'confirmed'
			RETURNING `+bookingColumns, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortByStart(cancelled)
	return cancelled, nil
}

func queryBookings(ctx context.Context, q queryer, query string, args ...any) ([]scheduler.Booking, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var bookings []scheduler.Booking
	for rows.Next() {
		var (
			booking  scheduler.Booking
			priority int
			status   string
		)
		if err := rows.Scan(&booking.ID, &booking.ResourceID, &booking.Title, &booking.OwnerID,
			&booking.Interval.Start, &booking.Interval.End, &priority, &booking.RecurringGroupID, &status, &booking.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		booking.Priority = scheduler.Priority(priority)
		booking.Status = scheduler.BookingStatus(status)
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return bookings, nil
}

func sortByStart(bookings []scheduler.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Interval.Start.Equal(bookings[j].Interval.Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Interval.Start.Before(bookings[j].Interval.Start)
	})
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
