package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type roomRepoStub struct {
	createErr error
	created   Room

	getRoom Room
	getErr  error

	updateErr error
	updated   Room

	deleteErr error
	deletedID string

	list    []Room
	listErr error
}

func (r *roomRepoStub) CreateRoom(_ context.Context, room Room) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = room
	return nil
}

func (r *roomRepoStub) GetRoom(_ context.Context, id string) (Room, error) {
	if r.getErr != nil {
		return Room{}, r.getErr
	}
	if r.getRoom.ID == "" || r.getRoom.ID != id {
		return Room{}, persistence.ErrNotFound
	}
	return r.getRoom, nil
}

func (r *roomRepoStub) UpdateRoom(_ context.Context, room Room) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updated = room
	return nil
}

func (r *roomRepoStub) DeleteRoom(_ context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deletedID = id
	return nil
}

func (r *roomRepoStub) ListRooms(context.Context) ([]Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]Room(nil), r.list...), nil
}

func (r *roomRepoStub) ListRoomsByMinCapacity(_ context.Context, capacity int) ([]Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Room
	for _, room := range r.list {
		if room.Capacity >= capacity {
			out = append(out, room)
		}
	}
	return out, nil
}

var boardroom = RoomInput{Name: "Boardroom", Location: "HQ 3F", Capacity: 12}

func TestRoomService_AdminOnlyMutations(t *testing.T) {
	t.Parallel()

	member := Principal{UserID: "member-1"}
	svc := NewRoomService(&roomRepoStub{getRoom: Room{ID: "room-1"}}, nil, nil)

	mutations := map[string]func() error{
		"create": func() error {
			_, err := svc.CreateRoom(context.Background(), CreateRoomParams{Principal: member, Input: boardroom})
			return err
		},
		"update": func() error {
			_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{Principal: member, RoomID: "room-1", Input: boardroom})
			return err
		},
		"delete": func() error {
			return svc.DeleteRoom(context.Background(), member, "room-1")
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			if err := mutate(); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestRoomService_ValidatesInput(t *testing.T) {
	t.Parallel()

	admin := Principal{UserID: "admin", IsAdmin: true}
	cases := []struct {
		name   string
		input  RoomInput
		fields []string
	}{
		{name: "blank name", input: RoomInput{Name: "  ", Location: "HQ", Capacity: 4}, fields: []string{"name"}},
		{name: "missing location", input: RoomInput{Name: "Huddle", Capacity: 4}, fields: []string{"location"}},
		{name: "zero capacity", input: RoomInput{Name: "Huddle", Location: "HQ"}, fields: []string{"capacity"}},
		{name: "everything missing", input: RoomInput{Capacity: -2}, fields: []string{"name", "location", "capacity"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &roomRepoStub{getRoom: Room{ID: "room-1", Name: "Old", Location: "HQ", Capacity: 4}}
			svc := NewRoomService(repo, func() string { return "room-2" }, nil)

			_, createErr := svc.CreateRoom(context.Background(), CreateRoomParams{Principal: admin, Input: tc.input})
			_, updateErr := svc.UpdateRoom(context.Background(), UpdateRoomParams{Principal: admin, RoomID: "room-1", Input: tc.input})

			for _, err := range []error{createErr, updateErr} {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if len(vErr.FieldErrors) != len(tc.fields) {
					t.Fatalf("expected fields %v, got %v", tc.fields, vErr.FieldErrors)
				}
				for _, field := range tc.fields {
					if _, ok := vErr.FieldErrors[field]; !ok {
						t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
					}
				}
			}
			if repo.created.ID != "" || repo.updated.ID != "" {
				t.Fatalf("expected nothing persisted, got created=%+v updated=%+v", repo.created, repo.updated)
			}
		})
	}
}

func TestRoomService_CreateRoom(t *testing.T) {
	t.Parallel()

	t.Run("normalizes and stamps the new room", func(t *testing.T) {
		repo := &roomRepoStub{}
		now := time.Date(2024, time.May, 6, 7, 0, 0, 0, time.UTC)
		facilities := "  video wall  "
		svc := NewRoomService(repo, func() string { return "room-9" }, func() time.Time { return now })

		room, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: Principal{IsAdmin: true},
			Input:     RoomInput{Name: " Atrium ", Location: " Annex ", Capacity: 40, Facilities: &facilities},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if room.ID != "room-9" || repo.created.ID != "room-9" {
			t.Fatalf("expected generated id room-9, got %q / %q", room.ID, repo.created.ID)
		}
		if repo.created.Name != "Atrium" || repo.created.Location != "Annex" || repo.created.Capacity != 40 {
			t.Fatalf("expected trimmed attributes, got %+v", repo.created)
		}
		if repo.created.Facilities == nil || *repo.created.Facilities != "video wall" {
			t.Fatalf("expected trimmed facilities, got %v", repo.created.Facilities)
		}
		if !repo.created.CreatedAt.Equal(now) || !repo.created.UpdatedAt.Equal(now) {
			t.Fatalf("expected injected clock timestamps, got %v / %v", repo.created.CreatedAt, repo.created.UpdatedAt)
		}
	})

	t.Run("blank facilities are dropped", func(t *testing.T) {
		repo := &roomRepoStub{}
		blank := "   "
		svc := NewRoomService(repo, func() string { return "room-1" }, nil)
		input := boardroom
		input.Facilities = &blank

		if _, err := svc.CreateRoom(context.Background(), CreateRoomParams{Principal: Principal{IsAdmin: true}, Input: input}); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if repo.created.Facilities != nil {
			t.Fatalf("expected nil facilities, got %q", *repo.created.Facilities)
		}
	})

	t.Run("duplicate rooms surface ErrAlreadyExists", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{createErr: persistence.ErrDuplicate}, nil, nil)

		room, err := svc.CreateRoom(context.Background(), CreateRoomParams{Principal: Principal{IsAdmin: true}, Input: boardroom})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if room.ID != "" {
			t.Fatalf("expected zero room on failure, got %+v", room)
		}
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	t.Parallel()

	t.Run("missing room", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{}, nil, nil)

		_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{Principal: Principal{IsAdmin: true}, RoomID: "ghost", Input: boardroom})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("keeps identity and creation time", func(t *testing.T) {
		created := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)
		repo := &roomRepoStub{getRoom: Room{ID: "room-1", Name: "Old", Location: "HQ", Capacity: 4, CreatedAt: created, UpdatedAt: created}}
		now := created.Add(72 * time.Hour)
		svc := NewRoomService(repo, nil, func() time.Time { return now })

		room, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: Principal{IsAdmin: true},
			RoomID:    "room-1",
			Input:     RoomInput{Name: " Boardroom ", Location: "HQ 3F", Capacity: 16},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if room.ID != "room-1" || room.Name != "Boardroom" || room.Capacity != 16 {
			t.Fatalf("expected updated room-1, got %+v", room)
		}
		if !repo.updated.CreatedAt.Equal(created) || !repo.updated.UpdatedAt.Equal(now) {
			t.Fatalf("expected created %v and updated %v, got %+v", created, now, repo.updated)
		}
	})

	t.Run("storage failure is unavailable", func(t *testing.T) {
		repo := &roomRepoStub{getRoom: Room{ID: "room-1"}, updateErr: errors.New("disk full")}
		svc := NewRoomService(repo, nil, nil)

		_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{Principal: Principal{IsAdmin: true}, RoomID: "room-1", Input: boardroom})
		if !errors.Is(err, ErrRepositoryUnavailable) {
			t.Fatalf("expected ErrRepositoryUnavailable, got %v", err)
		}
	})
}

func TestRoomService_DeleteRoom(t *testing.T) {
	t.Parallel()

	admin := Principal{IsAdmin: true}
	cases := []struct {
		name      string
		deleteErr error
		check     func(t *testing.T, err error)
	}{
		{
			name: "deletes idle room",
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
			},
		},
		{
			name:      "missing room",
			deleteErr: persistence.ErrNotFound,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("expected ErrNotFound, got %v", err)
				}
			},
		},
		{
			name:      "room with confirmed bookings",
			deleteErr: persistence.ErrForeignKeyViolation,
			check: func(t *testing.T, err error) {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if _, ok := vErr.FieldErrors["room_id"]; !ok {
					t.Fatalf("expected room_id error, got %v", vErr.FieldErrors)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &roomRepoStub{deleteErr: tc.deleteErr}
			err := NewRoomService(repo, nil, nil).DeleteRoom(context.Background(), admin, "room-1")
			tc.check(t, err)
			if tc.deleteErr == nil && repo.deletedID != "room-1" {
				t.Fatalf("expected room-1 deleted, got %q", repo.deletedID)
			}
		})
	}
}

func TestRoomService_Reads(t *testing.T) {
	t.Parallel()

	repo := &roomRepoStub{
		getRoom: Room{ID: "room-2", Name: "Beta", Capacity: 10},
		list: []Room{
			{ID: "room-2", Name: "Beta", Capacity: 10},
			{ID: "room-3", Name: "alpha", Capacity: 8},
			{ID: "room-1", Name: "Alpha", Capacity: 6},
		},
	}
	svc := NewRoomService(repo, nil, nil)

	t.Run("list is open to members and sorted by name", func(t *testing.T) {
		rooms, err := svc.ListRooms(context.Background(), Principal{UserID: "member-1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rooms) != 3 || rooms[0].ID != "room-1" || rooms[1].ID != "room-3" || rooms[2].ID != "room-2" {
			t.Fatalf("expected case-insensitive name order, got %+v", rooms)
		}
	})

	t.Run("get by id", func(t *testing.T) {
		room, err := svc.GetRoom(context.Background(), "room-2")
		if err != nil || room.Name != "Beta" {
			t.Fatalf("expected Beta, got %v %+v", err, room)
		}
		if _, err := svc.GetRoom(context.Background(), "room-404"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list failure is unavailable", func(t *testing.T) {
		failing := NewRoomService(&roomRepoStub{listErr: errors.New("timeout")}, nil, nil)
		if _, err := failing.ListRooms(context.Background(), Principal{UserID: "member-1"}); !errors.Is(err, ErrRepositoryUnavailable) {
			t.Fatalf("expected ErrRepositoryUnavailable, got %v", err)
		}
	})
}

func TestRoomCatalog_ListResourcesByMinCapacity(t *testing.T) {
	t.Parallel()

	catalog := NewRoomCatalog(&roomRepoStub{list: []Room{
		{ID: "room-1", Name: "Small", Capacity: 4},
		{ID: "room-2", Name: "Large", Capacity: 20},
	}})

	resources, err := catalog.ListResourcesByMinCapacity(context.Background(), 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(resources) != 1 || resources[0].ID != "room-2" || resources[0].Name != "Large" || resources[0].Capacity != 20 {
		t.Fatalf("expected only the large room, got %+v", resources)
	}
}

func TestMapRoomRepoError(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err   error
		want  error
		field string
	}{
		"nil":         {},
		"not found":   {err: persistence.ErrNotFound, want: ErrNotFound},
		"duplicate":   {err: persistence.ErrDuplicate, want: ErrAlreadyExists},
		"constraint":  {err: persistence.ErrConstraintViolation, field: "capacity"},
		"foreign key": {err: persistence.ErrForeignKeyViolation, field: "room_id"},
		"unexpected":  {err: errors.New("boom"), want: ErrRepositoryUnavailable},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := mapRoomRepoError(tc.err)
			switch {
			case tc.field != "":
				var vErr *ValidationError
				if !errors.As(got, &vErr) || vErr.FieldErrors[tc.field] == "" {
					t.Fatalf("expected %s validation error, got %v", tc.field, got)
				}
			case tc.want == nil:
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
			case !errors.Is(got, tc.want):
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
