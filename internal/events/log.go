package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/scheduler"
)

// LogPublisher writes events to the structured log. It is the sink used when
// no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ application.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) log(ctx context.Context, key string) *zap.Logger {
	return logging.FromContextOr(ctx, p.logger).With(zap.String("event", key))
}

func (p *LogPublisher) BookingsCommitted(ctx context.Context, bookings []scheduler.Booking) error {
	p.log(ctx, KeyBookingsCommitted).Info("bookings committed", zap.Any("payload", bookingsPayload(bookings)))
	return nil
}

func (p *LogPublisher) BookingsCancelled(ctx context.Context, bookings []scheduler.Booking) error {
	p.log(ctx, KeyBookingsCancelled).Info("bookings cancelled", zap.Any("payload", bookingsPayload(bookings)))
	return nil
}

func (p *LogPublisher) ResolutionRecorded(ctx context.Context, record scheduler.ResolutionRecord) error {
	p.log(ctx, KeyResolutionRecorded).Info("resolution recorded", zap.Any("payload", resolutionPayload(record)))
	return nil
}

func (p *LogPublisher) WaitlistUpdated(ctx context.Context, entry scheduler.WaitlistEntry) error {
	p.log(ctx, KeyWaitlistUpdated).Info("waitlist updated", zap.Any("payload", waitlistPayload(entry)))
	return nil
}
