package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
)

// SeriesRepository reads recurring series definitions. Series rows are
// written by BookingRepository.CommitBookings in the same transaction as
// their instances.
type SeriesRepository struct {
	pool *ConnectionPool
}

// NewSeriesRepository creates a new SQLite series repository
func NewSeriesRepository(pool *ConnectionPool) *SeriesRepository {
	return &SeriesRepository{pool: pool}
}

// GetSeries retrieves a series by its recurring group ID.
func (r *SeriesRepository) GetSeries(ctx context.Context, id string) (persistence.Series, error) {
	query := `
		SELECT id, resource_id, owner_id, title, frequency, repeat_interval, weekdays_mask, month_day,
		       end_kind, end_until, end_count, exception_dates, starts_on,
		       slot_start_minutes, slot_end_minutes, created_at
		FROM recurring_series
		WHERE id = ?
	`

	var (
		series               persistence.Series
		frequency, endKind   int
		weekdaysMask         int64
		endUntil             sql.NullString
		exceptions, startsOn string
		slotStart, slotEnd   int
		createdAt            string
	)
	err := r.pool.DB().QueryRowContext(ctx, query, id).Scan(
		&series.ID,
		&series.ResourceID,
		&series.OwnerID,
		&series.Title,
		&frequency,
		&series.Definition.Interval,
		&weekdaysMask,
		&series.Definition.MonthDay,
		&endKind,
		&endUntil,
		&series.Definition.End.Count,
		&exceptions,
		&startsOn,
		&slotStart,
		&slotEnd,
		&createdAt,
	)
	if err != nil {
		return persistence.Series{}, mapError(err)
	}

	series.Definition.Frequency = recurrence.Frequency(frequency)
	series.Definition.Weekdays = decodeWeekdays(weekdaysMask)
	series.Definition.End.Kind = recurrence.EndKind(endKind)
	if endUntil.Valid {
		if series.Definition.End.Until, err = time.Parse(dateLayout, endUntil.String); err != nil {
			return persistence.Series{}, fmt.Errorf("failed to parse end_until: %w", err)
		}
	}
	if series.Definition.ExceptionDates, err = decodeDates(exceptions); err != nil {
		return persistence.Series{}, fmt.Errorf("failed to parse exception_dates: %w", err)
	}
	if series.StartsOn, err = time.Parse(dateLayout, startsOn); err != nil {
		return persistence.Series{}, fmt.Errorf("failed to parse starts_on: %w", err)
	}
	series.Slot = recurrence.TimeSlot{
		Start: time.Duration(slotStart) * time.Minute,
		End:   time.Duration(slotEnd) * time.Minute,
	}
	if series.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Series{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return series, nil
}

func insertSeries(ctx context.Context, tx *sql.Tx, series persistence.Series) error {
	def := series.Definition
	var endUntil sql.NullString
	if def.End.Kind == recurrence.EndAfterDate && !def.End.Until.IsZero() {
		endUntil = sql.NullString{String: def.End.Until.Format(dateLayout), Valid: true}
	}

	query := `
		INSERT INTO recurring_series (
			id, resource_id, owner_id, title, frequency, repeat_interval, weekdays_mask, month_day,
			end_kind, end_until, end_count, exception_dates, starts_on,
			slot_start_minutes, slot_end_minutes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		series.ID,
		series.ResourceID,
		series.OwnerID,
		series.Title,
		int(def.Frequency),
		def.Interval,
		encodeWeekdays(def.Weekdays),
		def.MonthDay,
		int(def.End.Kind),
		endUntil,
		def.End.Count,
		encodeDates(def.ExceptionDates),
		series.StartsOn.Format(dateLayout),
		int(series.Slot.Start/time.Minute),
		int(series.Slot.End/time.Minute),
		formatTime(series.CreatedAt),
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// encodeWeekdays encodes weekdays as a bitmask with Sunday in bit 0.
func encodeWeekdays(weekdays []time.Weekday) int64 {
	var mask int64
	for _, day := range weekdays {
		if day >= time.Sunday && day <= time.Saturday {
			mask |= 1 << uint(day)
		}
	}
	return mask
}

// decodeWeekdays decodes weekdays from a bitmask
func decodeWeekdays(mask int64) []time.Weekday {
	var weekdays []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if mask&(1<<uint(day)) != 0 {
			weekdays = append(weekdays, day)
		}
	}
	return weekdays
}

func encodeDates(dates []time.Time) string {
	formatted := make([]string, 0, len(dates))
	for _, date := range dates {
		formatted = append(formatted, date.Format(dateLayout))
	}
	sort.Strings(formatted)
	return strings.Join(formatted, ",")
}

func decodeDates(value string) ([]time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	dates := make([]time.Time, 0, len(parts))
	for _, part := range parts {
		date, err := time.Parse(dateLayout, part)
		if err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, nil
}
