package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultHardCap bounds expansion loops when callers pass no cap.
const DefaultHardCap = 366

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats every Interval days.
	FrequencyDaily
	// FrequencyWeekly repeats on the selected weekdays every Interval weeks.
	FrequencyWeekly
	// FrequencyMonthly repeats on MonthDay every Interval months.
	FrequencyMonthly
	// FrequencyYearly repeats on the series start's month and day every Interval years.
	FrequencyYearly
)

func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	case FrequencyMonthly:
		return "monthly"
	case FrequencyYearly:
		return "yearly"
	default:
		return "unspecified"
	}
}

// ParseFrequency converts a label produced by String back into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	case "yearly":
		return FrequencyYearly, nil
	}
	return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
}

// EndKind selects how a series terminates.
type EndKind int

const (
	EndUnspecified EndKind = iota
	EndNever
	EndAfterDate
	EndAfterOccurrences
)

func (k EndKind) String() string {
	switch k {
	case EndNever:
		return "never"
	case EndAfterDate:
		return "after_date"
	case EndAfterOccurrences:
		return "after_occurrences"
	default:
		return "unspecified"
	}
}

// ParseEndKind converts a label produced by String back into an EndKind.
func ParseEndKind(value string) (EndKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "never":
		return EndNever, nil
	case "after_date":
		return EndAfterDate, nil
	case "after_occurrences":
		return EndAfterOccurrences, nil
	}
	return EndUnspecified, fmt.Errorf("%w: %q", ErrInvalidEnd, value)
}

// End is the termination condition of a series. Only the payload matching
// Kind is meaningful.
type End struct {
	Kind  EndKind
	Until time.Time
	Count int
}

// Never returns an open-ended termination condition.
func Never() End { return End{Kind: EndNever} }

// AfterDate ends the series after the given calendar date, inclusive.
func AfterDate(until time.Time) End { return End{Kind: EndAfterDate, Until: until} }

// AfterOccurrences ends the series once count instances have been emitted.
func AfterOccurrences(count int) End { return End{Kind: EndAfterOccurrences, Count: count} }

// Definition describes a recurring series.
type Definition struct {
	Frequency      Frequency
	Interval       int
	Weekdays       []time.Weekday
	MonthDay       int
	End            End
	ExceptionDates []time.Time
}

// TimeSlot is a time-of-day range expressed as offsets from midnight.
type TimeSlot struct {
	Start time.Duration
	End   time.Duration
}

// SlotOf extracts the time-of-day range spanned by start and end.
func SlotOf(start, end time.Time) TimeSlot {
	return TimeSlot{Start: sinceMidnight(start), End: sinceMidnight(end)}
}

func sinceMidnight(t time.Time) time.Duration {
	y, m, d := t.Date()
	return t.Sub(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
}

// Instance is one concrete occurrence of a series.
type Instance struct {
	Date time.Time
	Slot TimeSlot
}

// Bounds resolves the instance to absolute timestamps on its date.
func (i Instance) Bounds() (time.Time, time.Time) {
	return i.Date.Add(i.Slot.Start), i.Date.Add(i.Slot.End)
}

// Engine expands recurrence definitions into instances.
type Engine struct {
	location *time.Location
	hardCap  int
}

// NewEngine constructs an Engine that anchors dates in loc. A nil loc means
// UTC and a non-positive hardCap means DefaultHardCap.
func NewEngine(loc *time.Location, hardCap int) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}
	return &Engine{location: loc, hardCap: hardCap}
}

// Location returns the zone instances are anchored in.
func (e *Engine) Location() *time.Location {
	return e.location
}

// Expand produces the ordered instances of def starting on the calendar day of
// seriesStart. Calendar dates are read from the values as given and re-anchored
// in the engine's location.
func (e *Engine) Expand(def Definition, seriesStart time.Time, slot TimeSlot) ([]Instance, error) {
	def.End.Until = anchor(def.End.Until, e.location)
	exceptions := make([]time.Time, 0, len(def.ExceptionDates))
	for _, date := range def.ExceptionDates {
		exceptions = append(exceptions, anchor(date, e.location))
	}
	def.ExceptionDates = exceptions
	return Expand(def, anchor(seriesStart, e.location), slot, e.hardCap)
}

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

var (
	ErrInvalidInterval    = errors.New("recurrence: interval must be positive")
	ErrMissingWeekdays    = errors.New("recurrence: weekly series require at least one weekday")
	ErrInvalidWeekday     = errors.New("recurrence: weekday must be between 0 and 6")
	ErrInvalidMonthDay    = errors.New("recurrence: month day must be between 1 and 31")
	ErrInvalidEnd         = errors.New("recurrence: exactly one end condition is required")
	ErrMissingEndDate     = errors.New("recurrence: end date is required")
	ErrEndBeforeStart     = errors.New("recurrence: end date precedes series start")
	ErrInvalidOccurrences = errors.New("recurrence: occurrence count must be at least 1")
	ErrInvalidSlot        = errors.New("recurrence: slot must start before it ends within one day")
)

// FieldError ties a validation failure to the offending field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// ValidationErrors collects every invalid field of a definition.
type ValidationErrors []*FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// Validate checks the structural invariants of a definition.
func (d Definition) Validate() error {
	var errs ValidationErrors
	add := func(field string, err error) {
		errs = append(errs, &FieldError{Field: field, Err: err})
	}

	switch d.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		add("frequency", ErrInvalidFrequency)
	}
	if d.Interval < 1 {
		add("interval", ErrInvalidInterval)
	}
	if d.Frequency == FrequencyWeekly {
		if len(d.Weekdays) == 0 {
			add("weekdays", ErrMissingWeekdays)
		}
		for _, day := range d.Weekdays {
			if day < time.Sunday || day > time.Saturday {
				add("weekdays", ErrInvalidWeekday)
				break
			}
		}
	}
	if d.Frequency == FrequencyMonthly && (d.MonthDay < 1 || d.MonthDay > 31) {
		add("month_day", ErrInvalidMonthDay)
	}

	switch d.End.Kind {
	case EndNever:
	case EndAfterDate:
		if d.End.Until.IsZero() {
			add("end.until", ErrMissingEndDate)
		}
	case EndAfterOccurrences:
		if d.End.Count < 1 {
			add("end.count", ErrInvalidOccurrences)
		}
	default:
		add("end", ErrInvalidEnd)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Validate checks that the slot fits inside a single day.
func (s TimeSlot) Validate() error {
	if s.Start < 0 || s.End > 24*time.Hour || s.Start >= s.End {
		return ErrInvalidSlot
	}
	return nil
}

// Expand is the pure expansion routine behind Engine.Expand. The loop runs at
// most hardCap iterations; exception dates consume an iteration but not an
// occurrence.
func Expand(def Definition, seriesStart time.Time, slot TimeSlot, hardCap int) ([]Instance, error) {
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := slot.Validate(); err != nil {
		return nil, ValidationErrors{{Field: "slot", Err: err}}
	}

	start := dateOf(seriesStart)
	loc := start.Location()

	maxCount := hardCap
	var endDate time.Time
	switch def.End.Kind {
	case EndAfterOccurrences:
		maxCount = def.End.Count
	case EndAfterDate:
		endDate = dateIn(def.End.Until, loc)
		if endDate.Before(start) {
			return nil, ValidationErrors{{Field: "end.until", Err: ErrEndBeforeStart}}
		}
	case EndNever:
		endDate = start.AddDate(0, 0, hardCap)
	}

	exceptions := make(map[string]struct{}, len(def.ExceptionDates))
	for _, date := range def.ExceptionDates {
		exceptions[dateKey(date)] = struct{}{}
	}
	weekdays := make(map[time.Weekday]struct{}, len(def.Weekdays))
	for _, day := range def.Weekdays {
		weekdays[day] = struct{}{}
	}

	instances := make([]Instance, 0)
	for i := 0; i < hardCap && len(instances) < maxCount; i++ {
		cursor, ok := def.candidate(start, i)
		if !endDate.IsZero() && cursor.After(endDate) {
			break
		}
		if !ok {
			continue
		}
		if _, skip := exceptions[dateKey(cursor)]; skip {
			continue
		}
		if !def.includes(start, cursor, weekdays) {
			continue
		}
		instances = append(instances, Instance{Date: cursor, Slot: slot})
	}

	return instances, nil
}

// candidate returns the cursor for loop iteration i. ok is false when the
// iteration lands on a month lacking the requested day or precedes the start.
func (d Definition) candidate(start time.Time, i int) (time.Time, bool) {
	loc := start.Location()
	switch d.Frequency {
	case FrequencyDaily:
		return start.AddDate(0, 0, i*d.Interval), true
	case FrequencyWeekly:
		return start.AddDate(0, 0, i), true
	case FrequencyMonthly:
		return onDay(start.Year(), start.Month()+time.Month(i*d.Interval), d.MonthDay, start, loc)
	case FrequencyYearly:
		return onDay(start.Year()+i*d.Interval, start.Month(), start.Day(), start, loc)
	}
	return start, false
}

func onDay(year int, month time.Month, day int, start time.Time, loc *time.Location) (time.Time, bool) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	date := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if date.Month() != first.Month() {
		return first, false
	}
	if date.Before(start) {
		return first, false
	}
	return date, true
}

func (d Definition) includes(start, cursor time.Time, weekdays map[time.Weekday]struct{}) bool {
	if d.Frequency != FrequencyWeekly {
		return true
	}
	if _, ok := weekdays[cursor.Weekday()]; !ok {
		return false
	}
	weekStart := start.AddDate(0, 0, -int(start.Weekday()))
	return (daysBetween(weekStart, cursor)/7)%d.Interval == 0
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	return dateIn(t, t.Location())
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func anchor(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	return dateIn(t, loc)
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
