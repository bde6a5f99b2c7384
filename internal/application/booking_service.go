package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

// maxRangeDays bounds ClassifyRange requests.
const maxRangeDays = 62

// BookingStore captures the persistence operations needed by the orchestrator.
type BookingStore interface {
	persistence.BookingRepository
	persistence.SeriesRepository
}

// EventPublisher receives the records the engine produces for external
// collaborators. Publish failures are logged and never fail the request.
type EventPublisher interface {
	BookingsCommitted(ctx context.Context, bookings []scheduler.Booking) error
	BookingsCancelled(ctx context.Context, bookings []scheduler.Booking) error
	ResolutionRecorded(ctx context.Context, record scheduler.ResolutionRecord) error
	WaitlistUpdated(ctx context.Context, entry scheduler.WaitlistEntry) error
}

// SlotFreedHook is invoked after bookings are cancelled so parked requests
// can be re-admitted.
type SlotFreedHook interface {
	OnSlotFreed(ctx context.Context, freed scheduler.Booking) ([]scheduler.WaitlistEntry, error)
}

// BookingServiceOptions carries the optional collaborators of BookingService.
type BookingServiceOptions struct {
	Rooms           persistence.RoomRepository
	Waitlist        persistence.WaitlistRepository
	Audit           persistence.ResolutionRepository
	Events          EventPublisher
	Cache           AvailabilityCache
	SlotFreed       SlotFreedHook
	Engine          *recurrence.Engine
	BusinessWindow  scheduler.BusinessWindow
	SuggestionLimit int
	IDGenerator     func() string
	Now             func() time.Time
	Logger          *zap.Logger
}

// BookingService orchestrates validation, expansion, conflict detection, and
// the all-or-nothing commit of booking requests.
type BookingService struct {
	bookings        BookingStore
	rooms           persistence.RoomRepository
	waitlist        persistence.WaitlistRepository
	audit           persistence.ResolutionRepository
	events          EventPublisher
	cache           AvailabilityCache
	slotFreed       SlotFreedHook
	engine          *recurrence.Engine
	detector        *scheduler.Detector
	aggregator      *scheduler.Aggregator
	resolver        *scheduler.Resolver
	window          scheduler.BusinessWindow
	suggestionLimit int
	idGenerator     func() string
	now             func() time.Time
	logger          *zap.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings BookingStore, opts BookingServiceOptions) *BookingService {
	if opts.IDGenerator == nil {
		opts.IDGenerator = func() string { return "" }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Engine == nil {
		opts.Engine = recurrence.NewEngine(time.UTC, 0)
	}
	if opts.BusinessWindow == (scheduler.BusinessWindow{}) {
		opts.BusinessWindow = scheduler.DefaultBusinessWindow
	}
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = scheduler.DefaultSuggestionLimit
	}

	var catalog scheduler.ResourceCatalog
	if opts.Rooms != nil {
		catalog = NewRoomCatalog(opts.Rooms)
	}

	return &BookingService{
		bookings:        bookings,
		rooms:           opts.Rooms,
		waitlist:        opts.Waitlist,
		audit:           opts.Audit,
		events:          opts.Events,
		cache:           opts.Cache,
		slotFreed:       opts.SlotFreed,
		engine:          opts.Engine,
		detector:        scheduler.NewDetector(bookings),
		aggregator:      scheduler.NewAggregator(bookings),
		resolver:        scheduler.NewResolver(bookings, catalog, opts.IDGenerator, opts.Now).InLocation(opts.Engine.Location()),
		window:          opts.BusinessWindow,
		suggestionLimit: opts.SuggestionLimit,
		idGenerator:     opts.IDGenerator,
		now:             opts.Now,
		logger:          defaultLogger(opts.Logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, fields...)
}

// preparedRequest is a validated and expanded request ready for conflict
// checks. replaces is the booking a reschedule moves; it never blocks
// suggestions.
type preparedRequest struct {
	request    BookingRequest
	roomName   string
	candidates []scheduler.Booking
	dates      []time.Time
	series     *persistence.Series
	replaces   string
}

// CreateBooking runs a single or recurring request through validation,
// expansion, and conflict detection. Conflicts are reported in the result with
// StateRejected; every instance is committed in one unit otherwise.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (result BookingResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBooking",
		zap.String("principal_id", params.Principal.UserID),
		zap.String("resource_id", params.Request.ResourceID),
		zap.Bool("recurring", params.Request.Recurring()),
	)
	defer func() {
		if err != nil {
			logger.Error("failed to create booking", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
			return
		}
		logBookingResult(logger, result)
	}()

	result, err = s.submit(ctx, params.Principal, params.Request)
	return
}

// submit is the shared Validating → Expanding → CheckingConflicts →
// Committing path.
func (s *BookingService) submit(ctx context.Context, principal Principal, request BookingRequest) (BookingResult, error) {
	prepared, err := s.prepare(ctx, principal, request)
	if err != nil {
		return BookingResult{}, err
	}

	conflicts, err := s.checkConflicts(ctx, prepared.candidates, prepared.dates, "")
	if err != nil {
		return BookingResult{}, err
	}
	if len(conflicts) > 0 {
		return s.rejected(ctx, prepared, conflicts)
	}

	return s.commit(ctx, prepared, persistence.BookingCommit{Bookings: prepared.candidates, Series: prepared.series}, "")
}

func (s *BookingService) prepare(ctx context.Context, principal Principal, request BookingRequest) (preparedRequest, error) {
	request.ResourceID = strings.TrimSpace(request.ResourceID)
	request.Title = strings.TrimSpace(request.Title)
	if request.OwnerID == "" {
		request.OwnerID = principal.UserID
	}
	if request.OwnerID != principal.UserID && !principal.IsAdmin {
		return preparedRequest{}, ErrUnauthorized
	}
	if request.Priority == scheduler.PriorityUnspecified {
		request.Priority = scheduler.PriorityNormal
	}

	if vErr := validateBookingRequest(request); vErr.HasErrors() {
		return preparedRequest{}, vErr
	}

	prepared := preparedRequest{request: request}

	if s.rooms != nil {
		room, err := s.rooms.GetRoom(ctx, request.ResourceID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				vErr := &ValidationError{}
				vErr.add("resource_id", "room does not exist")
				return preparedRequest{}, vErr
			}
			return preparedRequest{}, unavailable(err)
		}
		prepared.roomName = room.Name
	}

	intervals, dates, err := s.expand(request)
	if err != nil {
		return preparedRequest{}, err
	}

	createdAt := s.now()
	var groupID string
	if request.Recurring() {
		groupID = s.idGenerator()
		loc := s.engine.Location()
		prepared.series = &persistence.Series{
			ID:         groupID,
			ResourceID: request.ResourceID,
			OwnerID:    request.OwnerID,
			Title:      request.Title,
			Definition: *request.Recurrence,
			StartsOn:   scheduler.DateOf(request.Start.In(loc)),
			Slot:       recurrence.SlotOf(request.Start.In(loc), request.End.In(loc)),
			CreatedAt:  createdAt,
		}
	}

	prepared.candidates = make([]scheduler.Booking, 0, len(intervals))
	for _, interval := range intervals {
		prepared.candidates = append(prepared.candidates, scheduler.Booking{
			ID:               s.idGenerator(),
			ResourceID:       request.ResourceID,
			Title:            request.Title,
			OwnerID:          request.OwnerID,
			Interval:         interval,
			Priority:         request.Priority,
			RecurringGroupID: groupID,
			Status:           scheduler.StatusConfirmed,
			CreatedAt:        createdAt,
		})
	}
	prepared.dates = dates
	return prepared, nil
}

// expand turns a request into the absolute intervals of its instances.
func (s *BookingService) expand(request BookingRequest) ([]scheduler.TimeInterval, []time.Time, error) {
	if !request.Recurring() {
		interval := scheduler.TimeInterval{Start: request.Start, End: request.End}
		return []scheduler.TimeInterval{interval}, []time.Time{scheduler.DateOf(request.Start.In(s.engine.Location()))}, nil
	}

	loc := s.engine.Location()
	start := request.Start.In(loc)
	slot := recurrence.SlotOf(start, request.End.In(loc))

	instances, err := s.engine.Expand(*request.Recurrence, start, slot)
	if err != nil {
		return nil, nil, recurrenceValidationError(err)
	}
	if len(instances) == 0 {
		vErr := &ValidationError{}
		vErr.add("recurrence", "series produces no occurrences")
		return nil, nil, vErr
	}

	intervals := make([]scheduler.TimeInterval, 0, len(instances))
	dates := make([]time.Time, 0, len(instances))
	for _, instance := range instances {
		from, to := instance.Bounds()
		intervals = append(intervals, scheduler.TimeInterval{Start: from, End: to})
		dates = append(dates, instance.Date)
	}
	return intervals, dates, nil
}

// checkConflicts inspects every candidate and returns all conflicting
// instances rather than stopping at the first.
func (s *BookingService) checkConflicts(ctx context.Context, candidates []scheduler.Booking, dates []time.Time, excludeBookingID string) ([]InstanceConflict, error) {
	var conflicts []InstanceConflict
	for i, candidate := range candidates {
		blockers, err := s.detector.FindConflicts(ctx, candidate.ResourceID, candidate.Interval, excludeBookingID)
		if err != nil {
			return nil, unavailable(err)
		}
		if len(blockers) == 0 {
			continue
		}
		date := scheduler.DateOf(candidate.Interval.Start)
		if i < len(dates) {
			date = dates[i]
		}
		conflicts = append(conflicts, InstanceConflict{
			Index:    i,
			Date:     date,
			Interval: candidate.Interval,
			Blockers: blockers,
		})
	}
	return conflicts, nil
}

// rejected builds the conflict report: the override verdict covers every
// conflicting instance and the suggestions target the first one.
func (s *BookingService) rejected(ctx context.Context, prepared preparedRequest, conflicts []InstanceConflict) (BookingResult, error) {
	report := &ConflictReport{ConflictID: s.idGenerator(), Instances: conflicts, CanOverride: true}
	for _, conflict := range conflicts {
		if !scheduler.CanOverride(prepared.candidates[conflict.Index], conflict.Blockers) {
			report.CanOverride = false
		}
	}

	first := prepared.candidates[conflicts[0].Index]
	times, err := s.resolver.SuggestTimes(ctx, first, prepared.roomName, s.window, s.suggestionLimit, prepared.replaces)
	if err != nil {
		return BookingResult{}, unavailable(err)
	}
	report.TimeSuggestions = times

	rooms, err := s.suggestRooms(ctx, prepared, first)
	if err != nil {
		return BookingResult{}, err
	}
	report.ResourceSuggestions = rooms

	return BookingResult{State: StateRejected, Conflict: report}, nil
}

// suggestRooms returns alternative rooms free for every instance of the request.
func (s *BookingService) suggestRooms(ctx context.Context, prepared preparedRequest, first scheduler.Booking) ([]scheduler.Suggestion, error) {
	limit := s.suggestionLimit
	if len(prepared.candidates) > 1 {
		limit = math.MaxInt32
	}
	suggestions, err := s.resolver.SuggestResources(ctx, first, prepared.request.MinCapacity, limit, prepared.replaces)
	if err != nil {
		return nil, unavailable(err)
	}
	if len(prepared.candidates) == 1 {
		return suggestions, nil
	}

	var out []scheduler.Suggestion
	for _, suggestion := range suggestions {
		if len(out) >= s.suggestionLimit {
			break
		}
		free := true
		for _, candidate := range prepared.candidates {
			blockers, err := s.detector.FindConflicts(ctx, suggestion.ResourceID, candidate.Interval, prepared.replaces)
			if err != nil {
				return nil, unavailable(err)
			}
			if len(blockers) > 0 {
				free = false
				break
			}
		}
		if free {
			out = append(out, suggestion)
		}
	}
	return out, nil
}

// commit writes the prepared bookings. A constraint violation means another
// request won the race; the conflicts are re-read so the report names the
// bookings that actually block.
func (s *BookingService) commit(ctx context.Context, prepared preparedRequest, commit persistence.BookingCommit, excludeBookingID string) (BookingResult, error) {
	err := s.bookings.CommitBookings(ctx, commit)
	switch {
	case err == nil:
	case errors.Is(err, persistence.ErrConstraintViolation):
		conflicts, checkErr := s.checkConflicts(ctx, prepared.candidates, prepared.dates, excludeBookingID)
		if checkErr != nil {
			return BookingResult{}, checkErr
		}
		if len(conflicts) > 0 {
			return s.rejected(ctx, prepared, conflicts)
		}
		return BookingResult{}, fmt.Errorf("%w: %v", ErrConcurrentBooking, err)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("resource_id", "room does not exist")
		return BookingResult{}, vErr
	case errors.Is(err, persistence.ErrNotFound):
		return BookingResult{}, fmt.Errorf("displaced booking disappeared: %w", ErrConcurrentBooking)
	default:
		return BookingResult{}, unavailable(err)
	}

	committed := make([]scheduler.Booking, len(commit.Bookings))
	copy(committed, commit.Bookings)

	s.invalidate(ctx, committed...)
	s.publish(ctx, "bookings committed", func(events EventPublisher) error {
		return events.BookingsCommitted(ctx, committed)
	})

	result := BookingResult{State: StateCommitted, Bookings: committed}
	if commit.Series != nil {
		result.RecurringGroupID = commit.Series.ID
	}
	return result, nil
}

// ResolveConflict carries out the caller's decision for a reported conflict.
// Override is never applied automatically; it must be requested here and is
// refused unless the request outranks every blocker of every instance.
//
// Conflict reports are not persisted, so ConflictID is only a correlation key
// chosen by the caller, normally the id from an earlier ConflictReport. It is
// not checked against past reports; the request is re-evaluated from scratch
// and the audit record is filed under whatever id was supplied.
func (s *BookingService) ResolveConflict(ctx context.Context, params ResolveConflictParams) (result ResolveConflictResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ResolveConflict",
		zap.String("principal_id", params.Principal.UserID),
		zap.String("conflict_id", params.ConflictID),
		zap.String("outcome", string(params.Outcome)),
	)
	defer func() {
		if err != nil {
			logger.Error("failed to resolve conflict", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
			return
		}
		logBookingResult(logger, result.Booking)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.ConflictID) == "" {
		vErr.add("conflict_id", "conflict id is required")
	}
	if _, parseErr := scheduler.ParseOutcome(string(params.Outcome)); parseErr != nil {
		vErr.add("outcome", "outcome is not supported")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var notes string
	switch params.Outcome {
	case scheduler.OutcomeCancelled:
		notes = "request abandoned"
	case scheduler.OutcomeOverride:
		result.Booking, notes, err = s.override(ctx, params.Principal, params.Request)
	case scheduler.OutcomeWaitlisted:
		result.Booking, result.Waitlist, err = s.enqueue(ctx, params.Principal, params.Request)
		notes = fmt.Sprintf("%d instance(s) waitlisted", len(result.Waitlist))
	case scheduler.OutcomeRescheduled:
		if params.NewStart.IsZero() || params.NewEnd.IsZero() {
			vErr.add("new_start", "new start and end are required")
			err = vErr
			return
		}
		request := params.Request
		request.Start, request.End = params.NewStart, params.NewEnd
		result.Booking, err = s.submit(ctx, params.Principal, request)
		notes = fmt.Sprintf("moved to %s", params.NewStart.Format(time.RFC3339))
	case scheduler.OutcomeResourceChanged:
		if strings.TrimSpace(params.NewResourceID) == "" {
			vErr.add("new_resource_id", "new resource id is required")
			err = vErr
			return
		}
		request := params.Request
		request.ResourceID = params.NewResourceID
		result.Booking, err = s.submit(ctx, params.Principal, request)
		notes = fmt.Sprintf("moved to resource %s", params.NewResourceID)
	}
	if err != nil {
		return
	}

	// A flow that ended in a fresh conflict has not been resolved.
	if result.Booking.State == StateRejected {
		return
	}
	// Waitlisting a request whose conflict already cleared commits it instead.
	if params.Outcome == scheduler.OutcomeWaitlisted && result.Booking.State != StateWaitlisted {
		return
	}

	if strings.TrimSpace(params.Notes) != "" {
		notes = strings.TrimSpace(params.Notes)
	}
	var record scheduler.ResolutionRecord
	record, err = s.resolver.Record(params.ConflictID, params.Outcome, params.Principal.UserID, notes)
	if err != nil {
		return
	}
	s.appendRecord(ctx, record)
	result.Record = &record
	return
}

func (s *BookingService) override(ctx context.Context, principal Principal, request BookingRequest) (BookingResult, string, error) {
	prepared, err := s.prepare(ctx, principal, request)
	if err != nil {
		return BookingResult{}, "", err
	}
	conflicts, err := s.checkConflicts(ctx, prepared.candidates, prepared.dates, "")
	if err != nil {
		return BookingResult{}, "", err
	}

	commit := persistence.BookingCommit{Bookings: prepared.candidates, Series: prepared.series}
	if len(conflicts) == 0 {
		result, err := s.commit(ctx, prepared, commit, "")
		return result, "no blockers remained", err
	}

	var displaced []scheduler.Booking
	seen := make(map[string]struct{})
	for _, conflict := range conflicts {
		if !scheduler.CanOverride(prepared.candidates[conflict.Index], conflict.Blockers) {
			return BookingResult{}, "", ErrOverrideNotAllowed
		}
		for _, blocker := range conflict.Blockers {
			if _, ok := seen[blocker.ID]; ok {
				continue
			}
			seen[blocker.ID] = struct{}{}
			commit.Displace = append(commit.Displace, blocker.ID)
			blocker.Status = scheduler.StatusCancelled
			displaced = append(displaced, blocker)
		}
	}

	result, err := s.commit(ctx, prepared, commit, "")
	if err != nil || result.State != StateCommitted {
		return result, "", err
	}
	result.Displaced = displaced
	s.publish(ctx, "bookings displaced", func(events EventPublisher) error {
		return events.BookingsCancelled(ctx, displaced)
	})
	return result, fmt.Sprintf("displaced %s", strings.Join(bookingIDs(displaced), ", ")), nil
}

// enqueue parks every currently conflicting instance. Instances that are free
// are not committed on their own, which keeps recurring requests all-or-nothing.
func (s *BookingService) enqueue(ctx context.Context, principal Principal, request BookingRequest) (BookingResult, []scheduler.WaitlistEntry, error) {
	if s.waitlist == nil {
		return BookingResult{}, nil, fmt.Errorf("waitlist repository not configured")
	}
	prepared, err := s.prepare(ctx, principal, request)
	if err != nil {
		return BookingResult{}, nil, err
	}
	conflicts, err := s.checkConflicts(ctx, prepared.candidates, prepared.dates, "")
	if err != nil {
		return BookingResult{}, nil, err
	}
	if len(conflicts) == 0 {
		result, err := s.commit(ctx, prepared, persistence.BookingCommit{Bookings: prepared.candidates, Series: prepared.series}, "")
		return result, nil, err
	}

	entries := make([]scheduler.WaitlistEntry, 0, len(conflicts))
	for _, conflict := range conflicts {
		candidate := prepared.candidates[conflict.Index]
		// Parked instances are admitted one by one, outside any series.
		candidate.RecurringGroupID = ""
		entry := s.resolver.Enqueue(candidate)
		if err := s.waitlist.SaveWaitlistEntry(ctx, entry); err != nil {
			return BookingResult{}, nil, unavailable(err)
		}
		entries = append(entries, entry)
	}
	for _, entry := range entries {
		entry := entry
		s.publish(ctx, "waitlist entry", func(events EventPublisher) error {
			return events.WaitlistUpdated(ctx, entry)
		})
	}
	return BookingResult{State: StateWaitlisted}, entries, nil
}

// RescheduleBooking moves a confirmed booking as one cancel-and-recreate
// commit. The conflict check ignores the booking being moved.
func (s *BookingService) RescheduleBooking(ctx context.Context, params RescheduleBookingParams) (result BookingResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RescheduleBooking",
		zap.String("principal_id", params.Principal.UserID),
		zap.String("booking_id", params.BookingID),
	)
	defer func() {
		if err != nil {
			logger.Error("failed to reschedule booking", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
			return
		}
		logBookingResult(logger, result)
	}()

	var existing scheduler.Booking
	existing, err = s.loadBooking(ctx, params.Principal, params.BookingID)
	if err != nil {
		return
	}

	interval := scheduler.TimeInterval{Start: params.Start, End: params.End}
	if !interval.Valid() {
		vErr := &ValidationError{}
		vErr.add("end", "end must be after start")
		err = vErr
		return
	}

	moved := existing
	moved.ID = s.idGenerator()
	moved.Interval = interval
	moved.CreatedAt = s.now()

	prepared := preparedRequest{
		request:    BookingRequest{ResourceID: existing.ResourceID, Title: existing.Title, OwnerID: existing.OwnerID, Start: params.Start, End: params.End, Priority: existing.Priority},
		candidates: []scheduler.Booking{moved},
		dates:      []time.Time{scheduler.DateOf(params.Start.In(s.engine.Location()))},
		replaces:   existing.ID,
	}
	if s.rooms != nil {
		if room, roomErr := s.rooms.GetRoom(ctx, existing.ResourceID); roomErr == nil {
			prepared.roomName = room.Name
		}
	}

	var conflicts []InstanceConflict
	conflicts, err = s.checkConflicts(ctx, prepared.candidates, prepared.dates, existing.ID)
	if err != nil {
		return
	}
	if len(conflicts) > 0 {
		result, err = s.rejected(ctx, prepared, conflicts)
		return
	}

	result, err = s.commit(ctx, prepared, persistence.BookingCommit{Bookings: prepared.candidates, Displace: []string{existing.ID}}, existing.ID)
	if err != nil || result.State != StateCommitted {
		return
	}

	existing.Status = scheduler.StatusCancelled
	result.Displaced = []scheduler.Booking{existing}
	s.released(ctx, []scheduler.Booking{existing})
	return
}

// CancelBooking cancels one confirmed booking and offers the freed slot to the waitlist.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (result CancelResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		zap.String("principal_id", principal.UserID),
		zap.String("booking_id", bookingID),
	)
	defer func() {
		if err != nil {
			logger.Error("failed to cancel booking", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
			return
		}
		logger.Info("booking cancelled", zap.Int("promoted_count", len(result.Promoted)))
	}()

	if _, err = s.loadBooking(ctx, principal, bookingID); err != nil {
		return
	}

	result, err = s.cancel(ctx, []string{bookingID})
	return
}

// CancelSeries cancels every confirmed instance of a recurring group.
func (s *BookingService) CancelSeries(ctx context.Context, principal Principal, groupID string) (result CancelResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelSeries",
		zap.String("principal_id", principal.UserID),
		zap.String("recurring_group_id", groupID),
	)
	defer func() {
		if err != nil {
			logger.Error("failed to cancel series", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
			return
		}
		logger.Info("series cancelled",
			zap.Int("cancelled_count", len(result.Cancelled)),
			zap.Int("promoted_count", len(result.Promoted)),
		)
	}()

	var series persistence.Series
	series, err = s.bookings.GetSeries(ctx, groupID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if series.OwnerID != principal.UserID && !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	var instances []scheduler.Booking
	instances, err = s.bookings.ListSeriesBookings(ctx, groupID)
	if err != nil {
		err = unavailable(err)
		return
	}

	ids := make([]string, 0, len(instances))
	for _, instance := range instances {
		if instance.Status == scheduler.StatusConfirmed {
			ids = append(ids, instance.ID)
		}
	}
	if len(ids) == 0 {
		err = ErrBookingNotActive
		return
	}

	result, err = s.cancel(ctx, ids)
	return
}

func (s *BookingService) cancel(ctx context.Context, ids []string) (CancelResult, error) {
	cancelled, err := s.bookings.CancelBookings(ctx, ids)
	if err != nil {
		return CancelResult{}, mapBookingRepoError(err)
	}
	if len(cancelled) == 0 {
		return CancelResult{}, ErrBookingNotActive
	}

	promoted := s.released(ctx, cancelled)
	return CancelResult{Cancelled: cancelled, Promoted: promoted}, nil
}

// released publishes cancellations and hands each freed slot to the waitlist hook.
func (s *BookingService) released(ctx context.Context, cancelled []scheduler.Booking) []scheduler.WaitlistEntry {
	s.invalidate(ctx, cancelled...)
	s.publish(ctx, "bookings cancelled", func(events EventPublisher) error {
		return events.BookingsCancelled(ctx, cancelled)
	})

	if s.slotFreed == nil {
		return nil
	}
	var promoted []scheduler.WaitlistEntry
	for _, booking := range cancelled {
		entries, err := s.slotFreed.OnSlotFreed(ctx, booking)
		if err != nil {
			s.loggerWith(ctx, "OnSlotFreed", zap.String("booking_id", booking.ID)).
				Warn("waitlist promotion failed", zap.Error(err))
			continue
		}
		promoted = append(promoted, entries...)
	}
	return promoted
}

// CheckAvailability classifies one day of a resource's business hours.
func (s *BookingService) CheckAvailability(ctx context.Context, resourceID string, date time.Time) (scheduler.DayAvailability, error) {
	days, err := s.ClassifyRange(ctx, resourceID, date, 1)
	if err != nil {
		return scheduler.DayAvailability{}, err
	}
	return days[0], nil
}

// ClassifyRange classifies consecutive days starting at from. Results are
// cached per resource until a booking of that resource changes.
func (s *BookingService) ClassifyRange(ctx context.Context, resourceID string, from time.Time, days int) (out []scheduler.DayAvailability, err error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(resourceID) == "" {
		vErr.add("resource_id", "resource id is required")
	}
	if from.IsZero() {
		vErr.add("date", "date is required")
	}
	if days <= 0 || days > maxRangeDays {
		vErr.add("days", fmt.Sprintf("days must be between 1 and %d", maxRangeDays))
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	key := AvailabilityKey{
		ResourceID: resourceID,
		From:       scheduler.DateOf(from.In(s.engine.Location())),
		Days:       days,
		Window:     s.window,
	}
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return cached, nil
		}
		gen, cacheable = s.cache.Generation(ctx, resourceID)
	}

	out, err = s.aggregator.ClassifyRange(ctx, resourceID, key.From, days, s.window)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidBusinessWindow) {
			return nil, err
		}
		err = unavailable(err)
		s.loggerWith(ctx, "ClassifyRange", zap.String("resource_id", resourceID)).
			Error("failed to classify availability", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
		return nil, err
	}

	if cacheable {
		s.cache.Store(ctx, key, gen, out)
	}
	return out, nil
}

// FindConflicts returns confirmed bookings of resourceID overlapping interval.
func (s *BookingService) FindConflicts(ctx context.Context, resourceID string, interval scheduler.TimeInterval, excludeBookingID string) ([]scheduler.Booking, error) {
	if !interval.Valid() {
		vErr := &ValidationError{}
		vErr.add("end", "end must be after start")
		return nil, vErr
	}
	conflicts, err := s.detector.FindConflicts(ctx, resourceID, interval, excludeBookingID)
	if err != nil {
		return nil, unavailable(err)
	}
	return conflicts, nil
}

// GetBooking returns a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (scheduler.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return scheduler.Booking{}, mapBookingRepoError(err)
	}
	return booking, nil
}

// ListResolutions returns the audit trail of a conflict.
func (s *BookingService) ListResolutions(ctx context.Context, conflictID string) ([]scheduler.ResolutionRecord, error) {
	if s.audit == nil {
		return nil, nil
	}
	records, err := s.audit.ListResolutions(ctx, conflictID)
	if err != nil {
		return nil, unavailable(err)
	}
	return records, nil
}

func (s *BookingService) loadBooking(ctx context.Context, principal Principal, bookingID string) (scheduler.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return scheduler.Booking{}, mapBookingRepoError(err)
	}
	if booking.OwnerID != principal.UserID && !principal.IsAdmin {
		return scheduler.Booking{}, ErrUnauthorized
	}
	if booking.Status != scheduler.StatusConfirmed {
		return scheduler.Booking{}, ErrBookingNotActive
	}
	return booking, nil
}

func (s *BookingService) appendRecord(ctx context.Context, record scheduler.ResolutionRecord) {
	if s.audit != nil {
		if err := s.audit.AppendResolution(ctx, record); err != nil {
			s.loggerWith(ctx, "AppendResolution", zap.String("conflict_id", record.ConflictID)).
				Error("failed to append resolution record", zap.Error(err))
		}
	}
	s.publish(ctx, "resolution record", func(events EventPublisher) error {
		return events.ResolutionRecorded(ctx, record)
	})
}

func (s *BookingService) invalidate(ctx context.Context, bookings ...scheduler.Booking) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, booking := range bookings {
		if _, ok := seen[booking.ResourceID]; ok {
			continue
		}
		seen[booking.ResourceID] = struct{}{}
		s.cache.InvalidateResource(ctx, booking.ResourceID)
	}
}

func (s *BookingService) publish(ctx context.Context, what string, fn func(EventPublisher) error) {
	if s.events == nil {
		return
	}
	if err := fn(s.events); err != nil {
		s.loggerWith(ctx, "Publish").Warn("failed to publish "+what, zap.Error(err))
	}
}

func validateBookingRequest(request BookingRequest) *ValidationError {
	vErr := &ValidationError{}

	if request.ResourceID == "" {
		vErr.add("resource_id", "resource id is required")
	}
	if request.Title == "" {
		vErr.add("title", "title is required")
	}
	if request.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if request.End.IsZero() {
		vErr.add("end", "end is required")
	} else if !request.Start.IsZero() && !request.Start.Before(request.End) {
		vErr.add("end", "end must be after start")
	}
	if !request.Priority.Valid() {
		vErr.add("priority", "priority must be low, normal, high, or critical")
	}
	if request.MinCapacity < 0 {
		vErr.add("min_capacity", "min capacity cannot be negative")
	}
	if request.Recurrence != nil {
		if err := request.Recurrence.Validate(); err != nil {
			if inner, ok := recurrenceValidationError(err).(*ValidationError); ok {
				vErr.merge(inner)
			}
		}
	}

	return vErr
}

// recurrenceValidationError folds recurrence field errors into a ValidationError
// keyed as recurrence.<field>.
func recurrenceValidationError(err error) error {
	var fieldErrs recurrence.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		var single *recurrence.FieldError
		if !errors.As(err, &single) {
			return err
		}
		fieldErrs = recurrence.ValidationErrors{single}
	}
	vErr := &ValidationError{}
	for _, fieldErr := range fieldErrs {
		vErr.add("recurrence."+fieldErr.Field, fieldErr.Err.Error())
	}
	return vErr
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return unavailable(err)
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRepositoryUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
}

func bookingIDs(bookings []scheduler.Booking) []string {
	ids := make([]string, 0, len(bookings))
	for _, booking := range bookings {
		ids = append(ids, booking.ID)
	}
	return ids
}

func logBookingResult(logger *zap.Logger, result BookingResult) {
	switch result.State {
	case StateCommitted:
		logger.Info("booking committed",
			zap.Int("instance_count", len(result.Bookings)),
			zap.String("recurring_group_id", result.RecurringGroupID),
			zap.Int("displaced_count", len(result.Displaced)),
		)
	case StateWaitlisted:
		logger.Info("request waitlisted")
	case StateRejected:
		logger.Info("booking rejected",
			zap.String("conflict_id", result.Conflict.ConflictID),
			zap.Int("conflicting_instances", len(result.Conflict.Instances)),
			zap.Bool("can_override", result.Conflict.CanOverride),
		)
	}
}
