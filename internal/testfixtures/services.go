package testfixtures

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *zap.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if clock != nil {
			factory.Clock = clock
		}
	}
}

func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if generator != nil {
			factory.IDGenerator = generator
		}
	}
}

func WithLogger(logger *zap.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if logger != nil {
			factory.Logger = logger
		}
	}
}

// Services is the wired application layer over one store.
type Services struct {
	Rooms    *application.RoomService
	Bookings *application.BookingService
	Waitlist *application.WaitlistService
	Cache    *application.MemoryAvailabilityCache
	Events   *RecordingPublisher
}

// NewServices wires the room, booking and waitlist services over store the
// same way the binary does, with an in-memory cache and a recording publisher.
func (f *ServiceFactory) NewServices(store persistence.Store) Services {
	now := f.Clock.NowFunc()
	events := &RecordingPublisher{}
	cache := application.NewMemoryAvailabilityCache(time.Minute, 0, now)
	waitlist := application.NewWaitlistService(store, store, events, cache, now, f.Logger)

	bookings := application.NewBookingService(store, application.BookingServiceOptions{
		Rooms:       store,
		Waitlist:    store,
		Audit:       store,
		Events:      events,
		Cache:       cache,
		SlotFreed:   waitlist,
		Engine:      recurrence.NewEngine(time.UTC, 0),
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         now,
		Logger:      f.Logger,
	})

	return Services{
		Rooms:    application.NewRoomServiceWithLogger(store, f.IDGenerator.NextFunc(), now, f.Logger),
		Bookings: bookings,
		Waitlist: waitlist,
		Cache:    cache,
		Events:   events,
	}
}

// RecordingPublisher captures published events in memory.
type RecordingPublisher struct {
	mu          sync.Mutex
	Committed   []scheduler.Booking
	Cancelled   []scheduler.Booking
	Resolutions []scheduler.ResolutionRecord
	Waitlist    []scheduler.WaitlistEntry
}

var _ application.EventPublisher = (*RecordingPublisher)(nil)

func (p *RecordingPublisher) BookingsCommitted(_ context.Context, bookings []scheduler.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Committed = append(p.Committed, bookings...)
	return nil
}

func (p *RecordingPublisher) BookingsCancelled(_ context.Context, bookings []scheduler.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cancelled = append(p.Cancelled, bookings...)
	return nil
}

func (p *RecordingPublisher) ResolutionRecorded(_ context.Context, record scheduler.ResolutionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Resolutions = append(p.Resolutions, record)
	return nil
}

func (p *RecordingPublisher) WaitlistUpdated(_ context.Context, entry scheduler.WaitlistEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Waitlist = append(p.Waitlist, entry)
	return nil
}
