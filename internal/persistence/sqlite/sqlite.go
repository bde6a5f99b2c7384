// Package sqlite implements the persistence repositories on an embedded
// SQLite database using the pure-Go modernc driver.
package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/migrations"
)

// Store bundles every SQLite repository over one connection pool.
type Store struct {
	*RoomRepository
	*BookingRepository
	*SeriesRepository
	*WaitlistRepository
	*ResolutionRepository

	pool *ConnectionPool
}

var _ persistence.Store = (*Store)(nil)

// Open opens the database file at path. Call Migrate before first use.
func Open(path string) (*Store, error) {
	return OpenWithConfig(Config{Path: path})
}

// OpenWithConfig opens a store with explicit connection settings.
func OpenWithConfig(config Config) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Store{
		RoomRepository:       NewRoomRepository(pool),
		BookingRepository:    NewBookingRepository(pool),
		SeriesRepository:     NewSeriesRepository(pool),
		WaitlistRepository:   NewWaitlistRepository(pool),
		ResolutionRepository: NewResolutionRepository(pool),
		pool:                 pool,
	}, nil
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context, logger *zap.Logger) error {
	return migrations.Up(ctx, s.pool.DB(), migrations.SQLite, logger)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

var (
	_ persistence.RoomRepository       = (*Store)(nil)
	_ persistence.BookingRepository    = (*Store)(nil)
	_ persistence.SeriesRepository     = (*Store)(nil)
	_ persistence.WaitlistRepository   = (*Store)(nil)
	_ persistence.ResolutionRepository = (*Store)(nil)
)
