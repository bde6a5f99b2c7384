// Package postgres implements the persistence repositories on PostgreSQL via
// pgx. Overlapping confirmed bookings are prevented twice: CommitBookings holds
// a transaction-scoped advisory lock per room while it checks and inserts, and
// an exclusion constraint rejects anything that slips past.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/migrations"
)

// Store implements every persistence repository on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ persistence.Store = (*Store)(nil)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate applies the embedded schema through a database/sql handle on the pool.
func (s *Store) Migrate(ctx context.Context, logger *zap.Logger) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	return migrations.Up(ctx, db, migrations.Postgres, logger)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeExclusionViolation  = "23P01"
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", persistence.ErrForeignKeyViolation, pgErr.ConstraintName)
		case codeCheckViolation, codeExclusionViolation:
			return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return err
}

var (
	_ persistence.RoomRepository       = (*Store)(nil)
	_ persistence.BookingRepository    = (*Store)(nil)
	_ persistence.SeriesRepository     = (*Store)(nil)
	_ persistence.WaitlistRepository   = (*Store)(nil)
	_ persistence.ResolutionRepository = (*Store)(nil)
)
