package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dkeye/FrontDesk/internal/domain"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeedAndList(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	err := db.Seed(ctx,
		[]domain.Room{{Slug: "r201", Name: "Room 201", Floor: 2}, {Slug: "r101", Name: "Room 101", Floor: 1}},
		[]domain.Receptionist{{Slug: "desk", Name: "Front Desk"}},
	)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	rooms, err := db.Rooms(ctx)
	if err != nil {
		t.Fatalf("Rooms: %v", err)
	}
	if len(rooms) != 2 || rooms[0].Slug != "r101" || rooms[1].Floor != 2 {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}
	if rooms[0].Status != domain.RoomAvailable {
		t.Fatalf("new room status = %s", rooms[0].Status)
	}

	desks, err := db.Receptionists(ctx)
	if err != nil {
		t.Fatalf("Receptionists: %v", err)
	}
	if len(desks) != 1 || desks[0].Name != "Front Desk" || desks[0].Socket != "" {
		t.Fatalf("unexpected receptionists: %+v", desks)
	}
}

func TestReseedKeepsStatus(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	if err := db.UpsertRoom(ctx, domain.Room{Slug: "r101", Fingerprint: "fp1"}); err != nil {
		t.Fatalf("UpsertRoom: %v", err)
	}
	if err := db.SetRoomStatus(ctx, "r101", domain.RoomCleaning); err != nil {
		t.Fatalf("SetRoomStatus: %v", err)
	}
	if err := db.UpsertRoom(ctx, domain.Room{Slug: "r101", Name: "Room 101", Floor: 1}); err != nil {
		t.Fatalf("UpsertRoom again: %v", err)
	}

	r, err := db.Room(ctx, "r101")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if r.Status != domain.RoomCleaning || r.Name != "Room 101" || r.Fingerprint != "fp1" {
		t.Fatalf("unexpected room after reseed: %+v", r)
	}
}

func TestSetRoomStatusErrors(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	if err := db.SetRoomStatus(ctx, "nope", domain.RoomOccupied); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown room: %v", err)
	}
	if err := db.SetRoomStatus(ctx, "nope", "DIRTY"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status: %v", err)
	}
	if _, err := db.Room(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Room: %v", err)
	}
	if err := db.UpsertRoom(ctx, domain.Room{Slug: "has space"}); err == nil {
		t.Fatalf("expected invalid slug error")
	}
}

func TestBindReceptionist(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	if err := db.UpsertReceptionist(ctx, domain.Receptionist{Slug: "desk"}); err != nil {
		t.Fatalf("UpsertReceptionist: %v", err)
	}
	if err := db.BindReceptionist(ctx, "desk", "peer-1"); err != nil {
		t.Fatalf("BindReceptionist: %v", err)
	}
	r, err := db.Receptionist(ctx, "desk")
	if err != nil {
		t.Fatalf("Receptionist: %v", err)
	}
	if r.Socket != "peer-1" || r.Name != "desk" || r.UpdatedAt.IsZero() {
		t.Fatalf("unexpected receptionist: %+v", r)
	}
	if err := db.BindReceptionist(ctx, "ghost", "peer-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown desk: %v", err)
	}
	if _, err := db.Receptionist(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Receptionist ghost: %v", err)
	}
}

func TestReopenFreesSockets(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frontdesk.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.UpsertReceptionist(ctx, domain.Receptionist{Slug: "desk"}); err != nil {
		t.Fatalf("UpsertReceptionist: %v", err)
	}
	if err := db.BindReceptionist(ctx, "desk", "peer-1"); err != nil {
		t.Fatalf("BindReceptionist: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	r, err := db.Receptionist(ctx, "desk")
	if err != nil {
		t.Fatalf("Receptionist: %v", err)
	}
	if r.Socket != "" {
		t.Fatalf("socket survived restart: %q", r.Socket)
	}
}
