package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/example/room-booking/internal/persistence"
)

const roomColumns = `id, name, COALESCE(location, ''), capacity, facilities, created_at, updated_at`

// CreateRoom inserts a new room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, location, capacity, facilities, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`, room.ID, room.Name, room.Location, room.Capacity, room.Facilities, room.CreatedAt, room.UpdatedAt)
	return mapError(err)
}

// UpdateRoom updates an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE rooms
		SET name = $2, location = NULLIF($3, ''), capacity = $4, facilities = $5, updated_at = $6
		WHERE id = $1
	`, room.ID, room.Name, room.Location, room.Capacity, room.Facilities, room.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name then ID.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	return s.listRooms(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY name, id`)
}

// ListRoomsByMinCapacity returns rooms seating at least capacity, smallest first.
func (s *Store) ListRoomsByMinCapacity(ctx context.Context, capacity int) ([]persistence.Room, error) {
	return s.listRooms(ctx, `SELECT `+roomColumns+` FROM rooms WHERE capacity >= $1 ORDER BY capacity, name, id`, capacity)
}

func (s *Store) listRooms(ctx context.Context, query string, args ...any) ([]persistence.Room, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, mapError(err)
		}
		rooms = append(rooms, room)
	}
	return rooms, mapError(rows.Err())
}

// DeleteRoom removes a room with no confirmed bookings.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var confirmed int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE resource_id = $1 AND status = 'confirmed'`, id).Scan(&confirmed); err != nil {
			return mapError(err)
		}
		if confirmed > 0 {
			return persistence.ErrForeignKeyViolation
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func scanRoom(row pgx.Row) (persistence.Room, error) {
	var room persistence.Room
	err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &room.Facilities, &room.CreatedAt, &room.UpdatedAt)
	return room, err
}
