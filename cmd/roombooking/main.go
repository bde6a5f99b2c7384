package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/cache"
	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/events"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/postgres"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/recurrence"
	"github.com/example/room-booking/internal/scheduler"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout, time.Now); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", zap.Error(err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	srv, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	e := srv.Router
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	logger.Info("room booking API listening",
		zap.String("addr", addr),
		zap.String("store", cfg.Store),
		zap.String("timezone", cfg.Location.String()),
	)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// server is the wired HTTP surface plus the resources it owns.
type server struct {
	Router  *echo.Echo
	Store   persistence.Store
	closers []func() error
	logger  *zap.Logger
}

// Close releases owned resources in reverse acquisition order.
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("failed to release resource", zap.Error(err))
		}
	}
	s.closers = nil
}

type migrator interface {
	Migrate(ctx context.Context, logger *zap.Logger) error
}

func openStore(ctx context.Context, cfg config.Config) (persistence.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreSQLite, "":
		store, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// build opens the configured backends and wires services and handlers. The
// cache and event bus fall back to in-process implementations when their
// addresses are unset.
func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server, error) {
	srv := &server{logger: logger}
	fail := func(err error) (*server, error) {
		srv.Close()
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}
	srv.Store = store
	srv.closers = append(srv.closers, store.Close)

	if m, ok := store.(migrator); ok {
		if err := m.Migrate(ctx, logger); err != nil {
			return fail(fmt.Errorf("apply migrations: %w", err))
		}
	}

	now := time.Now
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	var availability application.AvailabilityCache
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		srv.closers = append(srv.closers, client.Close)
		availability = cache.NewRedisAvailabilityCache(client, "", cfg.CacheTTL, logger)
		logger.Info("availability cache backed by redis", zap.String("addr", cfg.RedisAddr))
	} else {
		availability = application.NewMemoryAvailabilityCache(cfg.CacheTTL, 0, now)
	}

	var publisher application.EventPublisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL, events.DefaultExchange, logger)
		if err != nil {
			return fail(fmt.Errorf("connect amqp: %w", err))
		}
		srv.closers = append(srv.closers, amqpPublisher.Close)
		publisher = amqpPublisher
		logger.Info("booking events published to amqp", zap.String("exchange", events.DefaultExchange))
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	idGenerator := uuid.NewString

	waitlistService := application.NewWaitlistService(store, store, publisher, availability, now, logger)
	bookingService := application.NewBookingService(store, application.BookingServiceOptions{
		Rooms:           store,
		Waitlist:        store,
		Audit:           store,
		Events:          publisher,
		Cache:           availability,
		SlotFreed:       waitlistService,
		Engine:          recurrence.NewEngine(loc, cfg.RecurrenceCap),
		BusinessWindow:  scheduler.BusinessWindow{Start: cfg.BusinessStart, End: cfg.BusinessEnd},
		SuggestionLimit: cfg.SuggestionLimit,
		IDGenerator:     idGenerator,
		Now:             now,
		Logger:          logger,
	})
	roomService := application.NewRoomServiceWithLogger(store, idGenerator, now, logger)

	srv.Router = httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:     httptransport.NewRoomHandler(roomService, logger),
		Bookings:  httptransport.NewBookingHandler(bookingService, loc, logger),
		Waitlist:  httptransport.NewWaitlistHandler(waitlistService, logger),
		JWTSecret: []byte(cfg.JWTSecret),
		Logger:    logger,
		Health:    store.Ping,
	})
	return srv, nil
}

// runToken prints a signed bearer token for local use:
//
//	roombooking token -sub alice [-admin] [-ttl 24h]
func runToken(args []string, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("sub", "", "user id placed in the token subject")
	admin := fs.Bool("admin", false, "grant administrator rights")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	if *subject == "" {
		return errors.New("token: -sub is required")
	}
	if *ttl <= 0 {
		return errors.New("token: -ttl must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}

	token, err := httptransport.IssueToken([]byte(cfg.JWTSecret), application.Principal{UserID: *subject, IsAdmin: *admin}, *ttl, now())
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
