package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
//
// CommitBookings runs inside a transaction opened with BEGIN IMMEDIATE, so the
// overlap check and the inserts see no concurrent writer.
type BookingRepository struct {
	pool  *ConnectionPool
	retry RetryConfig
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool, retry: DefaultRetryConfig()}
}

const bookingColumns = `id, resource_id, title, owner_id, start_time, end_time, priority, recurring_group_id, status, created_at`

// ListConfirmedBookings returns confirmed bookings of resourceID overlapping window.
func (r *BookingRepository) ListConfirmedBookings(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.Booking, error) {
	return listConfirmed(ctx, r.pool.DB(), resourceID, window)
}

func listConfirmed(ctx context.Context, q querier, resourceID string, window scheduler.TimeInterval) ([]scheduler.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE resource_id = ? AND status = 'confirmed' AND end_time > ? AND start_time < ?
		ORDER BY start_time ASC, id ASC
	`
	return queryBookings(ctx, q, query, resourceID, formatTime(window.Start), formatTime(window.End))
}

// CommitBookings writes the commit atomically or returns
// persistence.ErrConstraintViolation on overlap.
func (r *BookingRepository) CommitBookings(ctx context.Context, commit persistence.BookingCommit) error {
	if err := checkSiblings(commit.Bookings); err != nil {
		return err
	}

	return withRetry(ctx, r.retry, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := cancelDisplaced(ctx, tx, commit.Displace); err != nil {
				return err
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
			for _, booking := range commit.Bookings {
				if err := insertBooking(ctx, tx, booking); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func checkSiblings(bookings []scheduler.Booking) error {
	for i, booking := range bookings {
		if !booking.Interval.Valid() {
			return persistence.ErrConstraintViolation
		}
		for _, sibling := range bookings[:i] {
			if sibling.ResourceID == booking.ResourceID && scheduler.Overlaps(sibling.Interval, booking.Interval) {
				return fmt.Errorf("%w: bookings %s and %s overlap", persistence.ErrConstraintViolation, sibling.ID, booking.ID)
			}
		}
	}
	return nil
}

func cancelDisplaced(ctx context.Context, tx *sql.Tx, ids []string) error {
	for _, id := range ids {
		result, err := tx.ExecContext(ctx, `UPDATE bookings SET status = 'cancelled' WHERE id = ? AND status = 'confirmed'`, id)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected > 0 {
			continue
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("displace booking %s: %w", id, mapError(err))
		}
	}
	return nil
}

func insertBooking(ctx context.Context, tx *sql.Tx, booking scheduler.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'confirmed', ?)
	`
	_, err := tx.ExecContext(ctx, query,
		booking.ID,
		booking.ResourceID,
		booking.Title,
		booking.OwnerID,
		formatTime(booking.Interval.Start),
		formatTime(booking.Interval.End),
		int(booking.Priority),
		nullString(booking.RecurringGroupID),
		formatTime(booking.CreatedAt),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (scheduler.Booking, error) {
	bookings, err := queryBookings(ctx, r.pool.DB(), `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if err != nil {
		return scheduler.Booking{}, err
	}
	if len(bookings) == 0 {
		return scheduler.Booking{}, persistence.ErrNotFound
	}
	return bookings[0], nil
}

// ListSeriesBookings returns every booking of a recurring group ordered by start.
func (r *BookingRepository) ListSeriesBookings(ctx context.Context, groupID string) ([]scheduler.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE recurring_group_id = ?
		ORDER BY start_time ASC, id ASC
	`
	return queryBookings(ctx, r.pool.DB(), query, groupID)
}

// CancelBookings marks the given confirmed bookings cancelled and returns them.
func (r *BookingRepository) CancelBookings(ctx context.Context, ids []string) ([]scheduler.Booking, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var cancelled []scheduler.Booking
	err := withRetry(ctx, r.retry, func() error {
		cancelled = nil
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
			args := make([]any, 0, len(ids))
			for _, id := range ids {
				args = append(args, id)
			}

			existing, err := queryBookings(ctx, tx, `SELECT `+bookingColumns+` FROM bookings WHERE id IN (`+placeholders+`) ORDER BY start_time ASC, id ASC`, args...)
			if err != nil {
				return err
			}
			if len(existing) != len(uniqueStrings(ids)) {
				return fmt.Errorf("cancel bookings: %w", persistence.ErrNotFound)
			}

			if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = 'cancelled' WHERE status = 'confirmed' AND id IN (`+placeholders+`)`, args...); err != nil {
				return mapError(err)
			}
			for _, booking := range existing {
				if booking.Status != scheduler.StatusConfirmed {
					continue
				}
				booking.Status = scheduler.StatusCancelled
				cancelled = append(cancelled, booking)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]scheduler.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var bookings []scheduler.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (scheduler.Booking, error) {
	var (
		booking                   scheduler.Booking
		startStr, endStr, created string
		priority                  int
		groupID                   sql.NullString
		status                    string
	)
	if err := row.Scan(&booking.ID, &booking.ResourceID, &booking.Title, &booking.OwnerID, &startStr, &endStr, &priority, &groupID, &status, &created); err != nil {
		return scheduler.Booking{}, mapError(err)
	}

	var err error
	if booking.Interval.Start, err = parseTime(startStr); err != nil {
		return scheduler.Booking{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if booking.Interval.End, err = parseTime(endStr); err != nil {
		return scheduler.Booking{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if booking.CreatedAt, err = parseTime(created); err != nil {
		return scheduler.Booking{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	booking.Priority = scheduler.Priority(priority)
	booking.RecurringGroupID = groupID.String
	booking.Status = scheduler.BookingStatus(status)
	return booking, nil
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
