package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

type waitlistService interface {
	RejectWaitlistEntry(ctx context.Context, principal application.Principal, entryID string) (scheduler.WaitlistEntry, error)
	ListPending(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.WaitlistEntry, error)
}

type WaitlistHandler struct {
	service   waitlistService
	responder responder
	logger    *zap.Logger
}

func NewWaitlistHandler(service waitlistService, logger *zap.Logger) *WaitlistHandler {
	base := defaultLogger(logger)
	return &WaitlistHandler{service: service, responder: newResponder(base), logger: base}
}

// List returns pending entries of a room overlapping the start/end query window.
func (h *WaitlistHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	window, ok := parseIntervalQuery(c)
	if !ok {
		return h.responder.writeError(c, http.StatusBadRequest, errInvalidQueryArg)
	}

	entries, err := h.service.ListPending(ctx, c.Param("id"), window)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, waitlistResponse{Entries: toWaitlistDTOs(entries)})
}

func (h *WaitlistHandler) Reject(c echo.Context) error {
	ctx, principal := caller(c)
	entryID := strings.TrimSpace(c.Param("id"))
	if entryID == "" {
		return h.responder.writeError(c, http.StatusBadRequest, errMissingID)
	}

	logger := handlerLogger(ctx, h.logger, "WaitlistHandler", "Reject", zap.String("waitlist_id", entryID))
	entry, err := h.service.RejectWaitlistEntry(ctx, principal, entryID)
	if err != nil {
		logger.Error("waitlist reject failed", zap.Error(err), zap.String("error_kind", application.ErrorKind(err)))
		return h.responder.handleServiceError(c, err)
	}
	return h.responder.writeJSON(c, http.StatusOK, waitlistEntryResponse{Entry: toWaitlistDTO(entry)})
}

type waitlistDTO struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	RequestedAt string     `json:"requested_at"`
	DecidedAt   string     `json:"decided_at,omitempty"`
	Request     bookingDTO `json:"request"`
}

func toWaitlistDTO(entry scheduler.WaitlistEntry) waitlistDTO {
	dto := waitlistDTO{
		ID:          entry.ID,
		Status:      string(entry.Status),
		RequestedAt: entry.RequestedAt.UTC().Format(time.RFC3339Nano),
		Request:     toBookingDTO(entry.Request),
	}
	if !entry.DecidedAt.IsZero() {
		dto.DecidedAt = entry.DecidedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func toWaitlistDTOs(entries []scheduler.WaitlistEntry) []waitlistDTO {
	out := make([]waitlistDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toWaitlistDTO(entry))
	}
	return out
}

type waitlistResponse struct {
	Entries []waitlistDTO `json:"entries"`
}

type waitlistEntryResponse struct {
	Entry waitlistDTO `json:"entry"`
}
