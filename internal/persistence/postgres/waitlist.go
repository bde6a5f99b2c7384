package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

const waitlistColumns = `id, booking_id, resource_id, title, owner_id, start_time, end_time, priority, requested_at, status, decided_at`

// SaveWaitlistEntry inserts an entry or records its decision.
func (s *Store) SaveWaitlistEntry(ctx context.Context, entry scheduler.WaitlistEntry) error {
	if entry.ID == "" {
		return persistence.ErrConstraintViolation
	}
	var decided *time.Time
	if !entry.DecidedAt.IsZero() {
		at := entry.DecidedAt
		decided = &at
	}
	request := entry.Request
	_, err := s.pool.Exec(ctx, `
		INSERT INTO waitlist_entries (`+waitlistColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, decided_at = EXCLUDED.decided_at
	`, entry.ID, request.ID, request.ResourceID, request.Title, request.OwnerID,
		request.Interval.Start, request.Interval.End, int(request.Priority),
		entry.RequestedAt, string(entry.Status), decided)
	return mapError(err)
}

// GetWaitlistEntry retrieves an entry by ID.
func (s *Store) GetWaitlistEntry(ctx context.Context, id string) (scheduler.WaitlistEntry, error) {
	entry, err := scanWaitlistEntry(s.pool.QueryRow(ctx, `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = $1`, id))
	if err != nil {
		return scheduler.WaitlistEntry{}, mapError(err)
	}
	return entry, nil
}

// ListPendingWaitlist returns pending entries for resourceID overlapping window, oldest first.
func (s *Store) ListPendingWaitlist(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.WaitlistEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+waitlistColumns+`
		FROM waitlist_entries
		WHERE resource_id = $1 AND status = 'pending' AND end_time > $2 AND start_time < $3
		ORDER BY requested_at, id
	`, resourceID, window.Start, window.End)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []scheduler.WaitlistEntry
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, mapError(err)
		}
		entries = append(entries, entry)
	}
	return entries, mapError(rows.Err())
}

func scanWaitlistEntry(row pgx.Row) (scheduler.WaitlistEntry, error) {
	var (
		entry    scheduler.WaitlistEntry
		priority int
		status   string
		decided  *time.Time
	)
	request := &entry.Request
	if err := row.Scan(&entry.ID, &request.ID, &request.ResourceID, &request.Title, &request.OwnerID,
		&request.Interval.Start, &request.Interval.End, &priority, &entry.RequestedAt, &status, &decided); err != nil {
		return scheduler.WaitlistEntry{}, err
	}
	request.Priority = scheduler.Priority(priority)
	entry.Status = scheduler.WaitlistStatus(status)
	if decided != nil {
		entry.DecidedAt = *decided
	}
	return entry, nil
}

// AppendResolution inserts an audit record.
func (s *Store) AppendResolution(ctx context.Context, record scheduler.ResolutionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resolution_records (id, conflict_id, outcome, resolved_by, notes, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.ConflictID, string(record.Outcome), record.ResolvedBy, record.Notes, record.Timestamp)
	return mapError(err)
}

// ListResolutions returns the records of a conflict in the order they were made.
func (s *Store) ListResolutions(ctx context.Context, conflictID string) ([]scheduler.ResolutionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conflict_id, outcome, resolved_by, notes, recorded_at
		FROM resolution_records
		WHERE conflict_id = $1
		ORDER BY recorded_at, id
	`, conflictID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var records []scheduler.ResolutionRecord
	for rows.Next() {
		var (
			record  scheduler.ResolutionRecord
			outcome string
		)
		if err := rows.Scan(&record.ID, &record.ConflictID, &outcome, &record.ResolvedBy, &record.Notes, &record.Timestamp); err != nil {
			return nil, mapError(err)
		}
		record.Outcome = scheduler.Outcome(outcome)
		records = append(records, record)
	}
	return records, mapError(rows.Err())
}
