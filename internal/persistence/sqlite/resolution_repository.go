package sqlite

import (
	"context"
	"fmt"

	"github.com/example/room-booking/internal/scheduler"
)

// ResolutionRepository is the SQLite-backed append-only resolution audit log.
type ResolutionRepository struct {
	pool *ConnectionPool
}

// NewResolutionRepository creates a new SQLite resolution repository
func NewResolutionRepository(pool *ConnectionPool) *ResolutionRepository {
	return &ResolutionRepository{pool: pool}
}

// AppendResolution inserts a record. Existing records are never updated.
func (r *ResolutionRepository) AppendResolution(ctx context.Context, record scheduler.ResolutionRecord) error {
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO resolution_records (id, conflict_id, outcome, resolved_by, notes, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.ID, record.ConflictID, string(record.Outcome), record.ResolvedBy, record.Notes, formatTime(record.Timestamp))
	if err != nil {
		return mapError(err)
	}
	return nil
}

// ListResolutions returns the records of a conflict in the order they were made.
func (r *ResolutionRepository) ListResolutions(ctx context.Context, conflictID string) ([]scheduler.ResolutionRecord, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, conflict_id, outcome, resolved_by, notes, recorded_at
		FROM resolution_records
		WHERE conflict_id = ?
		ORDER BY recorded_at ASC, id ASC
	`, conflictID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var records []scheduler.ResolutionRecord
	for rows.Next() {
		var (
			record            scheduler.ResolutionRecord
			outcome, recorded string
		)
		if err := rows.Scan(&record.ID, &record.ConflictID, &outcome, &record.ResolvedBy, &record.Notes, &recorded); err != nil {
			return nil, mapError(err)
		}
		record.Outcome = scheduler.Outcome(outcome)
		if record.Timestamp, err = parseTime(recorded); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return records, nil
}
