package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/room-booking/internal/scheduler"
)

// WaitlistRepository implements persistence.WaitlistRepository using SQLite
type WaitlistRepository struct {
	pool *ConnectionPool
}

// NewWaitlistRepository creates a new SQLite waitlist repository
func NewWaitlistRepository(pool *ConnectionPool) *WaitlistRepository {
	return &WaitlistRepository{pool: pool}
}

const waitlistColumns = `id, booking_id, resource_id, title, owner_id, start_time, end_time, priority, requested_at, status, decided_at`

// SaveWaitlistEntry inserts an entry or records its decision.
func (r *WaitlistRepository) SaveWaitlistEntry(ctx context.Context, entry scheduler.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (` + waitlistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, decided_at = excluded.decided_at
	`
	request := entry.Request
	_, err := r.pool.DB().ExecContext(ctx, query,
		entry.ID,
		request.ID,
		request.ResourceID,
		request.Title,
		request.OwnerID,
		formatTime(request.Interval.Start),
		formatTime(request.Interval.End),
		int(request.Priority),
		formatTime(entry.RequestedAt),
		string(entry.Status),
		nullTime(entry.DecidedAt),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetWaitlistEntry retrieves an entry by ID.
func (r *WaitlistRepository) GetWaitlistEntry(ctx context.Context, id string) (scheduler.WaitlistEntry, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, id)
	return scanWaitlistEntry(row)
}

// ListPendingWaitlist returns pending entries for resourceID overlapping window, oldest first.
func (r *WaitlistRepository) ListPendingWaitlist(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.WaitlistEntry, error) {
	query := `
		SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE resource_id = ? AND status = 'pending' AND end_time > ? AND start_time < ?
		ORDER BY requested_at ASC, id ASC
	`
	rows, err := r.pool.DB().QueryContext(ctx, query, resourceID, formatTime(window.Start), formatTime(window.End))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []scheduler.WaitlistEntry
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

func scanWaitlistEntry(row rowScanner) (scheduler.WaitlistEntry, error) {
	var (
		entry                       scheduler.WaitlistEntry
		startStr, endStr, requested string
		priority                    int
		status                      string
		decided                     sql.NullString
	)
	request := &entry.Request
	if err := row.Scan(&entry.ID, &request.ID, &request.ResourceID, &request.Title, &request.OwnerID, &startStr, &endStr, &priority, &requested, &status, &decided); err != nil {
		return scheduler.WaitlistEntry{}, mapError(err)
	}

	var err error
	if request.Interval.Start, err = parseTime(startStr); err != nil {
		return scheduler.WaitlistEntry{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if request.Interval.End, err = parseTime(endStr); err != nil {
		return scheduler.WaitlistEntry{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if entry.RequestedAt, err = parseTime(requested); err != nil {
		return scheduler.WaitlistEntry{}, fmt.Errorf("failed to parse requested_at: %w", err)
	}
	if entry.DecidedAt, err = parseNullTime(decided); err != nil {
		return scheduler.WaitlistEntry{}, fmt.Errorf("failed to parse decided_at: %w", err)
	}
	request.Priority = scheduler.Priority(priority)
	entry.Status = scheduler.WaitlistStatus(status)
	return entry, nil
}
