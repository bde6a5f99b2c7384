package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// WaitlistService re-admits parked requests when slots are freed. It lives
// outside the engine and goes through the same conflict check as any request.
type WaitlistService struct {
	bookings persistence.BookingRepository
	waitlist persistence.WaitlistRepository
	detector *scheduler.Detector
	events   EventPublisher
	cache    AvailabilityCache
	now      func() time.Time
	logger   *zap.Logger
}

// NewWaitlistService wires the waitlist hook. events and cache may be nil.
func NewWaitlistService(bookings persistence.BookingRepository, waitlist persistence.WaitlistRepository, events EventPublisher, cache AvailabilityCache, now func() time.Time, logger *zap.Logger) *WaitlistService {
	if now == nil {
		now = time.Now
	}
	return &WaitlistService{
		bookings: bookings,
		waitlist: waitlist,
		detector: scheduler.NewDetector(bookings),
		events:   events,
		cache:    cache,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

func (s *WaitlistService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "WaitlistService", operation, fields...)
}

// OnSlotFreed offers the freed interval to pending entries of the same
// resource, oldest request first. Entries whose interval has already started
// are rejected; the rest are committed when they no longer conflict.
func (s *WaitlistService) OnSlotFreed(ctx context.Context, freed scheduler.Booking) (promoted []scheduler.WaitlistEntry, err error) {
	logger := s.loggerWith(ctx, "OnSlotFreed",
		zap.String("booking_id", freed.ID),
		zap.String("resource_id", freed.ResourceID),
	)
	defer func() {
		if err != nil {
			logger.Error("failed to promote waitlist", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
			return
		}
		if len(promoted) > 0 {
			logger.Info("waitlist promoted", zap.Int("promoted_count", len(promoted)))
		}
	}()

	var pending []scheduler.WaitlistEntry
	pending, err = s.waitlist.ListPendingWaitlist(ctx, freed.ResourceID, freed.Interval)
	if err != nil {
		err = unavailable(err)
		return
	}

	for _, entry := range pending {
		now := s.now()
		if !entry.Request.Interval.Start.After(now) {
			if rejectErr := s.decide(ctx, entry, scheduler.WaitlistRejected, now); rejectErr != nil {
				err = rejectErr
				return
			}
			continue
		}

		var conflicts []scheduler.Booking
		conflicts, err = s.detector.FindConflicts(ctx, entry.Request.ResourceID, entry.Request.Interval, entry.Request.ID)
		if err != nil {
			err = unavailable(err)
			return
		}
		if len(conflicts) > 0 {
			continue
		}

		booking := entry.Request
		booking.Status = scheduler.StatusConfirmed
		booking.CreatedAt = now
		commitErr := s.bookings.CommitBookings(ctx, persistence.BookingCommit{Bookings: []scheduler.Booking{booking}})
		switch {
		case commitErr == nil:
		case errors.Is(commitErr, persistence.ErrDuplicate), errors.Is(commitErr, persistence.ErrConstraintViolation):
			// Either an earlier promotion already wrote this booking or a
			// concurrent request won the slot, in which case the entry stays pending.
			var settled scheduler.WaitlistEntry
			settled, err = s.settleCommitted(ctx, entry, now)
			if err != nil {
				return
			}
			if settled.Status == scheduler.WaitlistApproved {
				promoted = append(promoted, settled)
			}
			continue
		case errors.Is(commitErr, persistence.ErrForeignKeyViolation):
			if rejectErr := s.decide(ctx, entry, scheduler.WaitlistRejected, now); rejectErr != nil {
				err = rejectErr
				return
			}
			continue
		default:
			err = unavailable(commitErr)
			return
		}

		if s.cache != nil {
			s.cache.InvalidateResource(ctx, booking.ResourceID)
		}
		if s.events != nil {
			if pubErr := s.events.BookingsCommitted(ctx, []scheduler.Booking{booking}); pubErr != nil {
				logger.Warn("failed to publish bookings committed", zap.Error(pubErr))
			}
		}

		var approved scheduler.WaitlistEntry
		approved, err = s.record(ctx, entry, scheduler.WaitlistApproved, now)
		if err != nil {
			return
		}
		promoted = append(promoted, approved)
	}
	return
}

// settleCommitted decides an entry whose booking already exists, which happens
// when an earlier promotion committed it but failed to save the decision. The
// entry is approved while that booking is confirmed and rejected once it has
// been cancelled. Without such a booking the entry is returned unchanged.
func (s *WaitlistService) settleCommitted(ctx context.Context, entry scheduler.WaitlistEntry, at time.Time) (scheduler.WaitlistEntry, error) {
	held, err := s.bookings.GetBooking(ctx, entry.Request.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return entry, nil
		}
		return scheduler.WaitlistEntry{}, unavailable(err)
	}
	if held.ResourceID != entry.Request.ResourceID || held.OwnerID != entry.Request.OwnerID {
		return entry, nil
	}
	if held.Status == scheduler.StatusConfirmed {
		return s.record(ctx, entry, scheduler.WaitlistApproved, at)
	}
	return s.record(ctx, entry, scheduler.WaitlistRejected, at)
}

// RejectWaitlistEntry declines a pending entry on behalf of its owner or an administrator.
func (s *WaitlistService) RejectWaitlistEntry(ctx context.Context, principal Principal, entryID string) (entry scheduler.WaitlistEntry, err error) {
	if s == nil {
		err = fmt.Errorf("WaitlistService is nil")
		return
	}

	logger := s.loggerWith(ctx, "RejectWaitlistEntry",
		zap.String("principal_id", principal.UserID),
		zap.String("waitlist_id", entryID),
	)
	defer func() {
		if err != nil {
			logger.Error("failed to reject waitlist entry", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
			return
		}
		logger.Info("waitlist entry rejected")
	}()

	entry, err = s.waitlist.GetWaitlistEntry(ctx, entryID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	if entry.Request.OwnerID != principal.UserID && !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	entry, err = s.record(ctx, entry, scheduler.WaitlistRejected, s.now())
	return
}

// GetWaitlistEntry returns one entry.
func (s *WaitlistService) GetWaitlistEntry(ctx context.Context, entryID string) (scheduler.WaitlistEntry, error) {
	entry, err := s.waitlist.GetWaitlistEntry(ctx, entryID)
	if err != nil {
		return scheduler.WaitlistEntry{}, mapBookingRepoError(err)
	}
	return entry, nil
}

// ListPending returns pending entries of resourceID overlapping window.
func (s *WaitlistService) ListPending(ctx context.Context, resourceID string, window scheduler.TimeInterval) ([]scheduler.WaitlistEntry, error) {
	entries, err := s.waitlist.ListPendingWaitlist(ctx, resourceID, window)
	if err != nil {
		return nil, unavailable(err)
	}
	return entries, nil
}

func (s *WaitlistService) decide(ctx context.Context, entry scheduler.WaitlistEntry, status scheduler.WaitlistStatus, at time.Time) error {
	_, err := s.record(ctx, entry, status, at)
	return err
}

func (s *WaitlistService) record(ctx context.Context, entry scheduler.WaitlistEntry, status scheduler.WaitlistStatus, at time.Time) (scheduler.WaitlistEntry, error) {
	var (
		decided scheduler.WaitlistEntry
		err     error
	)
	switch status {
	case scheduler.WaitlistApproved:
		decided, err = entry.Approve(at)
	default:
		decided, err = entry.Reject(at)
	}
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("status", "waitlist entry has already been decided")
		return scheduler.WaitlistEntry{}, vErr
	}

	if err := s.waitlist.SaveWaitlistEntry(ctx, decided); err != nil {
		return scheduler.WaitlistEntry{}, unavailable(err)
	}
	if s.events != nil {
		if pubErr := s.events.WaitlistUpdated(ctx, decided); pubErr != nil {
			s.loggerWith(ctx, "Publish").Warn("failed to publish waitlist update", zap.Error(pubErr))
		}
	}
	return decided, nil
}
