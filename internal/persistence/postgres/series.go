package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
)

// seriesRow mirrors the recurring_series columns.
type seriesRow struct {
	ID             string
	ResourceID     string
	OwnerID        string
	Title          string
	Frequency      int
	Interval       int
	WeekdaysMask   int
	MonthDay       int
	EndKind        int
	EndUntil       *time.Time
	EndCount       int
	ExceptionDates []time.Time
	StartsOn       time.Time
	SlotStart      int
	SlotEnd        int
	CreatedAt      time.Time
}

// newSeriesRow encodes series for insertion. Weekdays become a bitmask with
// Sunday in bit 0, the until date is kept only for EndAfterDate and the slot
// is stored in minutes since midnight.
func newSeriesRow(series persistence.Series) seriesRow {
	def := series.Definition
	row := seriesRow{
		ID:             series.ID,
		ResourceID:     series.ResourceID,
		OwnerID:        series.OwnerID,
		Title:          series.Title,
		Frequency:      int(def.Frequency),
		Interval:       def.Interval,
		WeekdaysMask:   encodeWeekdays(def.Weekdays),
		MonthDay:       def.MonthDay,
		EndKind:        int(def.End.Kind),
		EndCount:       def.End.Count,
		ExceptionDates: def.ExceptionDates,
		StartsOn:       series.StartsOn,
		SlotStart:      int(series.Slot.Start / time.Minute),
		SlotEnd:        int(series.Slot.End / time.Minute),
		CreatedAt:      series.CreatedAt,
	}
	if def.End.Kind == recurrence.EndAfterDate && !def.End.Until.IsZero() {
		until := def.End.Until
		row.EndUntil = &until
	}
	if row.ExceptionDates == nil {
		row.ExceptionDates = []time.Time{}
	}
	return row
}

func (r seriesRow) series() persistence.Series {
	series := persistence.Series{
		ID:         r.ID,
		ResourceID: r.ResourceID,
		OwnerID:    r.OwnerID,
		Title:      r.Title,
		Definition: recurrence.Definition{
			Frequency:      recurrence.Frequency(r.Frequency),
			Interval:       r.Interval,
			Weekdays:       decodeWeekdays(r.WeekdaysMask),
			MonthDay:       r.MonthDay,
			End:            recurrence.End{Kind: recurrence.EndKind(r.EndKind), Count: r.EndCount},
			ExceptionDates: r.ExceptionDates,
		},
		StartsOn: r.StartsOn,
		Slot: recurrence.TimeSlot{
			Start: time.Duration(r.SlotStart) * time.Minute,
			End:   time.Duration(r.SlotEnd) * time.Minute,
		},
		CreatedAt: r.CreatedAt,
	}
	if r.EndUntil != nil {
		series.Definition.End.Until = *r.EndUntil
	}
	if len(series.Definition.ExceptionDates) == 0 {
		series.Definition.ExceptionDates = nil
	}
	return series
}

func encodeWeekdays(weekdays []time.Weekday) int {
	mask := 0
	for _, day := range weekdays {
		if day >= time.Sunday && day <= time.Saturday {
			mask |= 1 << uint(day)
		}
	}
	return mask
}

func decodeWeekdays(mask int) []time.Weekday {
	var weekdays []time.Weekday
	for day := time.Sunday; day <= time.Saturday; day++ {
		if mask&(1<<uint(day)) != 0 {
			weekdays = append(weekdays, day)
		}
	}
	return weekdays
}

// GetSeries retrieves a recurring series by group ID.
func (s *Store) GetSeries(ctx context.Context, id string) (persistence.Series, error) {
	var row seriesRow
	err := s.pool.QueryRow(ctx, `
		SELECT id, resource_id, owner_id, title, frequency, repeat_interval, weekdays_mask, month_day,
		       end_kind, end_until, end_count, exception_dates, starts_on,
		       slot_start_minutes, slot_end_minutes, created_at
		FROM recurring_series
		WHERE id = $1
	`, id).Scan(
		&row.ID, &row.ResourceID, &row.OwnerID, &row.Title,
		&row.Frequency, &row.Interval, &row.WeekdaysMask, &row.MonthDay,
		&row.EndKind, &row.EndUntil, &row.EndCount, &row.ExceptionDates, &row.StartsOn,
		&row.SlotStart, &row.SlotEnd, &row.CreatedAt,
	)
	if err != nil {
		return persistence.Series{}, mapError(err)
	}
	return row.series(), nil
}

func insertSeries(ctx context.Context, tx pgx.Tx, series persistence.Series) error {
	row := newSeriesRow(series)
	_, err := tx.Exec(ctx, `
		INSERT INTO recurring_series (
			id, resource_id, owner_id, title, frequency, repeat_interval, weekdays_mask, month_day,
			end_kind, end_until, end_count, exception_dates, starts_on,
			slot_start_minutes, slot_end_minutes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		row.ID, row.ResourceID, row.OwnerID, row.Title,
		row.Frequency, row.Interval, row.WeekdaysMask, row.MonthDay,
		row.EndKind, row.EndUntil, row.EndCount, row.ExceptionDates, row.StartsOn,
		row.SlotStart, row.SlotEnd, row.CreatedAt,
	)
	return mapError(err)
}
