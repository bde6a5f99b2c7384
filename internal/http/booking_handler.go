package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

const dateLayout = "2006-01-02"

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.BookingResult, error)
	ResolveConflict(ctx context.Context, params application.ResolveConflictParams) (application.ResolveConflictResult, error)
	RescheduleBooking(ctx context.Context, params application.RescheduleBookingParams) (application.BookingResult, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.CancelResult, error)
	CancelSeries(ctx context.Context, principal application.Principal, groupID string) (application.CancelResult, error)
	GetBooking(ctx context.Context, bookingID string) (scheduler.Booking, error)
	ClassifyRange(ctx context.Context, resourceID string, from time.Time, days int) ([]scheduler.DayAvailability, error)
	FindConflicts(ctx context.Context, resourceID string, interval scheduler.TimeInterval, excludeBookingID string) ([]scheduler.Booking, error)
	ListResolutions(ctx context.Context, conflictID string) ([]scheduler.ResolutionRecord, error)
}

type BookingHandler struct {
	service   bookingService
	location  *time.Location
	responder responder
	logger    *zap.Logger
}

// NewBookingHandler interprets calendar dates in loc.
func NewBookingHandler(service bookingService, loc *time.Location, logger *zap.Logger) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	base := defaultLogger(logger)
	return &BookingHandler{service: service, location: loc, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, fields...)
}

// Create handles create-booking. A recurrence object, when present, is honoured.
func (h *BookingHandler) Create(c echo.Context) error {
	return h.create(c, "Create", false)
}

// CreateRecurring handles create-recurring-booking.
func (h *BookingHandler) CreateRecurring(c echo.Context) error {
	return h.create(c, "CreateRecurring", true)
}

func (h *BookingHandler) create(c echo.Context, operation string, recurring bool) error {
	ctx, principal := caller(c)

	var req bookingRequest
	if err := bind(c, &req); err != nil {
		h.log(ctx, operation, zap.String("error_kind", "bad_request")).Warn("failed to decode booking request", zap.Error(err))
		return h.responder.bindError(c, err)
	}
	if recurring && req.Recurrence == nil {
		vErr := &application.ValidationError{FieldErrors: map[string]string{"recurrence": "recurrence is required"}}
		return h.responder.handleServiceError(c, vErr)
	}

	request, err := req.toRequest(h.location)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	logger := h.log(ctx, operation, zap.String("resource_id", request.ResourceID))
	result, err := h.service.CreateBooking(ctx, application.CreateBookingParams{Principal: principal, Request: request})
	if err != nil {
		logger.Error("booking failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}

	return h.writeResult(c, result)
}

func (h *BookingHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	booking, err := h.service.GetBooking(ctx, c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Reschedule(c echo.Context) error {
	ctx, principal := caller(c)
	bookingID := strings.TrimSpace(c.Param("id"))

	var req rescheduleRequest
	if err := bind(c, &req); err != nil {
		return h.responder.bindError(c, err)
	}

	logger := h.log(ctx, "Reschedule", zap.String("booking_id", bookingID))
	result, err := h.service.RescheduleBooking(ctx, application.RescheduleBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Start:     req.Start.In(h.location),
		End:       req.End.In(h.location),
	})
	if err != nil {
		logger.Error("reschedule failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}
	return h.writeResult(c, result)
}

func (h *BookingHandler) Cancel(c echo.Context) error {
	ctx, principal := caller(c)

	result, err := h.service.CancelBooking(ctx, principal, c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, toCancelResponse(result))
}

func (h *BookingHandler) CancelSeries(c echo.Context) error {
	ctx, principal := caller(c)

	result, err := h.service.CancelSeries(ctx, principal, c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, toCancelResponse(result))
}

// Resolve handles resolve-conflict.
func (h *BookingHandler) Resolve(c echo.Context) error {
	ctx, principal := caller(c)
	conflictID := strings.TrimSpace(c.Param("id"))

	var req resolveRequest
	if err := bind(c, &req); err != nil {
		return h.responder.bindError(c, err)
	}

	params := application.ResolveConflictParams{
		Principal:     principal,
		ConflictID:    conflictID,
		Outcome:       scheduler.Outcome(req.Outcome),
		NewResourceID: req.NewResourceID,
		Notes:         req.Notes,
	}
	if req.NewStart != nil {
		params.NewStart = *req.NewStart
	}
	if req.NewEnd != nil {
		params.NewEnd = *req.NewEnd
	}
	if req.Request != nil {
		request, err := req.Request.toRequest(h.location)
		if err != nil {
			return h.responder.handleServiceError(c, err)
		}
		params.Request = request
	} else if params.Outcome != scheduler.OutcomeCancelled {
		vErr := &application.ValidationError{FieldErrors: map[string]string{"request": "request is required"}}
		return h.responder.handleServiceError(c, vErr)
	}

	logger := h.log(ctx, "Resolve", zap.String("conflict_id", conflictID), zap.String("outcome", req.Outcome))
	result, err := h.service.ResolveConflict(ctx, params)
	if err != nil {
		logger.Error("resolution failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}

	resp := resolveResponse{
		Result:   toResultDTO(result.Booking),
		Waitlist: toWaitlistDTOs(result.Waitlist),
	}
	if result.Record != nil {
		record := toRecordDTO(*result.Record)
		resp.Record = &record
	}

	status := http.StatusOK
	switch result.Booking.State {
	case application.StateRejected:
		status = http.StatusConflict
	case application.StateWaitlisted:
		status = http.StatusAccepted
	}
	return h.responder.writeJSON(c, status, resp)
}

func (h *BookingHandler) Resolutions(c echo.Context) error {
	ctx := c.Request().Context()
	records, err := h.service.ListResolutions(ctx, c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	out := make([]recordDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toRecordDTO(record))
	}
	return h.responder.writeJSON(c, http.StatusOK, resolutionsResponse{Resolutions: out})
}

// Availability handles check-availability for one or more consecutive days.
func (h *BookingHandler) Availability(c echo.Context) error {
	ctx := c.Request().Context()
	resourceID := c.Param("id")

	date, err := time.ParseInLocation(dateLayout, c.QueryParam("date"), h.location)
	if err != nil {
		return h.responder.writeError(c, http.StatusBadRequest, errInvalidQueryArg)
	}
	days := 1
	if raw := c.QueryParam("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			return h.responder.writeError(c, http.StatusBadRequest, errInvalidQueryArg)
		}
	}

	classified, err := h.service.ClassifyRange(ctx, resourceID, date, days)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	out := make([]dayAvailabilityDTO, 0, len(classified))
	for _, day := range classified {
		out = append(out, dayAvailabilityDTO{
			Date:          day.Date.Format(dateLayout),
			Availability:  string(day.Availability),
			BookedMinutes: day.BookedMinutes,
		})
	}
	return h.responder.writeJSON(c, http.StatusOK, availabilityResponse{ResourceID: resourceID, Days: out})
}

func (h *BookingHandler) Conflicts(c echo.Context) error {
	ctx := c.Request().Context()
	interval, ok := parseIntervalQuery(c)
	if !ok {
		return h.responder.writeError(c, http.StatusBadRequest, errInvalidQueryArg)
	}

	bookings, err := h.service.FindConflicts(ctx, c.Param("id"), interval, c.QueryParam("exclude"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, bookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) writeResult(c echo.Context, result application.BookingResult) error {
	status := http.StatusCreated
	switch result.State {
	case application.StateRejected:
		status = http.StatusConflict
	case application.StateWaitlisted:
		status = http.StatusAccepted
	}
	return h.responder.writeJSON(c, status, toResultDTO(result))
}

func parseIntervalQuery(c echo.Context) (scheduler.TimeInterval, bool) {
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return scheduler.TimeInterval{}, false
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return scheduler.TimeInterval{}, false
	}
	return scheduler.TimeInterval{Start: start, End: end}, true
}

type bookingRequest struct {
	ResourceID  string             `json:"resource_id" validate:"required"`
	Title       string             `json:"title" validate:"required"`
	OwnerID     string             `json:"owner_id"`
	Start       time.Time          `json:"start" validate:"required"`
	End         time.Time          `json:"end" validate:"required"`
	Priority    string             `json:"priority" validate:"omitempty,oneof=low normal high critical"`
	MinCapacity int                `json:"min_capacity" validate:"gte=0"`
	Recurrence  *recurrenceRequest `json:"recurrence"`
}

type recurrenceRequest struct {
	Frequency      string        `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval       int           `json:"interval" validate:"gte=0"`
	Weekdays       []string      `json:"weekdays"`
	MonthDay       int           `json:"month_day" validate:"gte=0,lte=31"`
	End            recurrenceEnd `json:"end"`
	ExceptionDates []string      `json:"exception_dates"`
}

type recurrenceEnd struct {
	Kind  string `json:"kind" validate:"required,oneof=never after_date after_occurrences"`
	Until string `json:"until"`
	Count int    `json:"count" validate:"gte=0"`
}

func (r bookingRequest) toRequest(loc *time.Location) (application.BookingRequest, error) {
	vErr := &application.ValidationError{}

	priority, err := scheduler.ParsePriority(r.Priority)
	if err != nil {
		vErr.FieldErrors = map[string]string{"priority": err.Error()}
		return application.BookingRequest{}, vErr
	}

	request := application.BookingRequest{
		ResourceID:  strings.TrimSpace(r.ResourceID),
		Title:       strings.TrimSpace(r.Title),
		OwnerID:     strings.TrimSpace(r.OwnerID),
		Start:       r.Start.In(loc),
		End:         r.End.In(loc),
		Priority:    priority,
		MinCapacity: r.MinCapacity,
	}
	if r.Recurrence == nil {
		return request, nil
	}

	def, fieldErrs := r.Recurrence.toDefinition(loc)
	if len(fieldErrs) > 0 {
		vErr.FieldErrors = fieldErrs
		return application.BookingRequest{}, vErr
	}
	request.Recurrence = &def
	return request, nil
}

func (r recurrenceRequest) toDefinition(loc *time.Location) (recurrence.Definition, map[string]string) {
	errs := make(map[string]string)

	frequency, err := recurrence.ParseFrequency(r.Frequency)
	if err != nil {
		errs["recurrence.frequency"] = err.Error()
	}
	endKind, err := recurrence.ParseEndKind(r.End.Kind)
	if err != nil {
		errs["recurrence.end.kind"] = err.Error()
	}

	interval := r.Interval
	if interval == 0 {
		interval = 1
	}
	def := recurrence.Definition{
		Frequency: frequency,
		Interval:  interval,
		MonthDay:  r.MonthDay,
		End:       recurrence.End{Kind: endKind, Count: r.End.Count},
	}
	for _, name := range r.Weekdays {
		day, ok := parseWeekday(name)
		if !ok {
			errs["recurrence.weekdays"] = "unknown weekday " + strconv.Quote(name)
			continue
		}
		def.Weekdays = append(def.Weekdays, day)
	}
	if r.End.Until != "" {
		until, err := time.ParseInLocation(dateLayout, r.End.Until, loc)
		if err != nil {
			errs["recurrence.end.until"] = "until must be a YYYY-MM-DD date"
		}
		def.End.Until = until
	}
	for _, raw := range r.ExceptionDates {
		date, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			errs["recurrence.exception_dates"] = "exception dates must be YYYY-MM-DD dates"
			continue
		}
		def.ExceptionDates = append(def.ExceptionDates, date)
	}
	return def, errs
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for day := time.Sunday; day <= time.Saturday; day++ {
		full := strings.ToLower(day.String())
		if name == full || name == full[:3] {
			return day, true
		}
	}
	return 0, false
}

type rescheduleRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

type resolveRequest struct {
	Outcome       string          `json:"outcome" validate:"required,oneof=override waitlisted rescheduled resource_changed cancelled"`
	Request       *bookingRequest `json:"request"`
	NewStart      *time.Time      `json:"new_start"`
	NewEnd        *time.Time      `json:"new_end"`
	NewResourceID string          `json:"new_resource_id"`
	Notes         string          `json:"notes"`
}

type bookingDTO struct {
	ID               string `json:"id"`
	ResourceID       string `json:"resource_id"`
	Title            string `json:"title"`
	OwnerID          string `json:"owner_id"`
	Start            string `json:"start"`
	End              string `json:"end"`
	Priority         string `json:"priority"`
	RecurringGroupID string `json:"recurring_group_id,omitempty"`
	Status           string `json:"status"`
}

func toBookingDTO(booking scheduler.Booking) bookingDTO {
	return bookingDTO{
		ID:               booking.ID,
		ResourceID:       booking.ResourceID,
		Title:            booking.Title,
		OwnerID:          booking.OwnerID,
		Start:            booking.Interval.Start.Format(time.RFC3339),
		End:              booking.Interval.End.Format(time.RFC3339),
		Priority:         booking.Priority.String(),
		RecurringGroupID: booking.RecurringGroupID,
		Status:           string(booking.Status),
	}
}

func toBookingDTOs(bookings []scheduler.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

type suggestionDTO struct {
	Kind         string `json:"kind"`
	ResourceID   string `json:"resource_id"`
	ResourceName string `json:"resource_name,omitempty"`
	Capacity     int    `json:"capacity,omitempty"`
	Start        string `json:"start"`
	End          string `json:"end"`
}

func toSuggestionDTOs(suggestions []scheduler.Suggestion) []suggestionDTO {
	out := make([]suggestionDTO, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionDTO{
			Kind:         string(s.Kind),
			ResourceID:   s.ResourceID,
			ResourceName: s.ResourceName,
			Capacity:     s.Capacity,
			Start:        s.Interval.Start.Format(time.RFC3339),
			End:          s.Interval.End.Format(time.RFC3339),
		})
	}
	return out
}

type instanceConflictDTO struct {
	Index    int          `json:"index"`
	Date     string       `json:"date"`
	Start    string       `json:"start"`
	End      string       `json:"end"`
	Blockers []bookingDTO `json:"blockers"`
}

type conflictDTO struct {
	ConflictID          string                `json:"conflict_id"`
	CanOverride         bool                  `json:"can_override"`
	Instances           []instanceConflictDTO `json:"instances"`
	TimeSuggestions     []suggestionDTO       `json:"time_suggestions"`
	ResourceSuggestions []suggestionDTO       `json:"resource_suggestions"`
}

type resultDTO struct {
	State            string       `json:"state"`
	Bookings         []bookingDTO `json:"bookings,omitempty"`
	RecurringGroupID string       `json:"recurring_group_id,omitempty"`
	Displaced        []bookingDTO `json:"displaced,omitempty"`
	Conflict         *conflictDTO `json:"conflict,omitempty"`
}

func toResultDTO(result application.BookingResult) resultDTO {
	dto := resultDTO{
		State:            string(result.State),
		RecurringGroupID: result.RecurringGroupID,
	}
	if len(result.Bookings) > 0 {
		dto.Bookings = toBookingDTOs(result.Bookings)
	}
	if len(result.Displaced) > 0 {
		dto.Displaced = toBookingDTOs(result.Displaced)
	}
	if report := result.Conflict; report != nil {
		conflict := conflictDTO{
			ConflictID:          report.ConflictID,
			CanOverride:         report.CanOverride,
			TimeSuggestions:     toSuggestionDTOs(report.TimeSuggestions),
			ResourceSuggestions: toSuggestionDTOs(report.ResourceSuggestions),
		}
		for _, instance := range report.Instances {
			conflict.Instances = append(conflict.Instances, instanceConflictDTO{
				Index:    instance.Index,
				Date:     instance.Date.Format(dateLayout),
				Start:    instance.Interval.Start.Format(time.RFC3339),
				End:      instance.Interval.End.Format(time.RFC3339),
				Blockers: toBookingDTOs(instance.Blockers),
			})
		}
		dto.Conflict = &conflict
	}
	return dto
}

type recordDTO struct {
	ID         string `json:"id"`
	ConflictID string `json:"conflict_id"`
	Outcome    string `json:"outcome"`
	ResolvedBy string `json:"resolved_by"`
	Timestamp  string `json:"timestamp"`
	Notes      string `json:"notes,omitempty"`
}

func toRecordDTO(record scheduler.ResolutionRecord) recordDTO {
	return recordDTO{
		ID:         record.ID,
		ConflictID: record.ConflictID,
		Outcome:    string(record.Outcome),
		ResolvedBy: record.ResolvedBy,
		Timestamp:  record.Timestamp.UTC().Format(time.RFC3339Nano),
		Notes:      record.Notes,
	}
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type bookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type cancelResponse struct {
	Cancelled []bookingDTO  `json:"cancelled"`
	Promoted  []waitlistDTO `json:"promoted"`
}

func toCancelResponse(result application.CancelResult) cancelResponse {
	return cancelResponse{
		Cancelled: toBookingDTOs(result.Cancelled),
		Promoted:  toWaitlistDTOs(result.Promoted),
	}
}

type resolveResponse struct {
	Result   resultDTO     `json:"result"`
	Waitlist []waitlistDTO `json:"waitlist,omitempty"`
	Record   *recordDTO    `json:"record,omitempty"`
}

type resolutionsResponse struct {
	Resolutions []recordDTO `json:"resolutions"`
}

type dayAvailabilityDTO struct {
	Date          string `json:"date"`
	Availability  string `json:"availability"`
	BookedMinutes int    `json:"booked_minutes"`
}

type availabilityResponse struct {
	ResourceID string               `json:"resource_id"`
	Days       []dayAvailabilityDTO `json:"days"`
}
