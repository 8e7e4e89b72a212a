// Package storage keeps the front desk directory (rooms and receptionist
// desks) in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid room status")
)

type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the directory database at path. ":memory:" works
// for tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: a single writer, and :memory: stays one database.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS rooms (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			slug        TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			floor       INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL DEFAULT 'AVAILABLE',
			fingerprint TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS receptionists (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			slug       TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			socket     TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT 0
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure database: %w", err)
		}
	}

	// Sockets of a previous run are dead.
	if _, err := db.Exec(`UPDATE receptionists SET socket = ''`); err != nil {
		db.Close()
		return nil, fmt.Errorf("reset sockets: %w", err)
	}
	log.Info().Str("module", "storage").Str("path", path).Msg("database opened")
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// UpsertRoom creates the room or refreshes its name and floor. Status and
// fingerprint of an existing row are kept unless fingerprint is set.
func (d *DB) UpsertRoom(ctx context.Context, r domain.Room) error {
	if err := validSlug(r.Slug); err != nil {
		return err
	}
	if r.Name == "" {
		r.Name = r.Slug
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.ExecContext(ctx, `INSERT INTO rooms (slug, name, floor, fingerprint)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name=excluded.name,
			floor=excluded.floor,
			fingerprint=CASE WHEN excluded.fingerprint = '' THEN rooms.fingerprint ELSE excluded.fingerprint END`,
		r.Slug, r.Name, r.Floor, r.Fingerprint)
	if err != nil {
		return fmt.Errorf("upsert room %s: %w", r.Slug, err)
	}
	return nil
}

func (d *DB) UpsertReceptionist(ctx context.Context, r domain.Receptionist) error {
	if err := validSlug(r.Slug); err != nil {
		return err
	}
	if r.Name == "" {
		r.Name = r.Slug
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.db.ExecContext(ctx, `INSERT INTO receptionists (slug, name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET name=excluded.name`,
		r.Slug, r.Name, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert receptionist %s: %w", r.Slug, err)
	}
	return nil
}

func (d *DB) Rooms(ctx context.Context) ([]domain.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rows, err := d.db.QueryContext(ctx, `SELECT id, slug, name, floor, status, fingerprint FROM rooms ORDER BY floor, slug`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		if err := rows.Scan(&r.ID, &r.Slug, &r.Name, &r.Floor, &r.Status, &r.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) Room(ctx context.Context, slug string) (domain.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var r domain.Room
	err := d.db.QueryRowContext(ctx, `SELECT id, slug, name, floor, status, fingerprint FROM rooms WHERE slug = ?`, slug).
		Scan(&r.ID, &r.Slug, &r.Name, &r.Floor, &r.Status, &r.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, fmt.Errorf("room %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room %s: %w", slug, err)
	}
	return r, nil
}

func (d *DB) SetRoomStatus(ctx context.Context, slug string, status domain.RoomStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.db.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE slug = ?`, string(status), slug)
	if err != nil {
		return fmt.Errorf("set room status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("room %s: %w", slug, ErrNotFound)
	}
	return nil
}

func (d *DB) Receptionists(ctx context.Context) ([]domain.Receptionist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rows, err := d.db.QueryContext(ctx, `SELECT id, slug, name, socket, updated_at FROM receptionists ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list receptionists: %w", err)
	}
	defer rows.Close()

	var out []domain.Receptionist
	for rows.Next() {
		r, err := scanReceptionist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) Receptionist(ctx context.Context, slug string) (domain.Receptionist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	row := d.db.QueryRowContext(ctx, `SELECT id, slug, name, socket, updated_at FROM receptionists WHERE slug = ?`, slug)
	r, err := scanReceptionist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Receptionist{}, fmt.Errorf("receptionist %s: %w", slug, ErrNotFound)
	}
	return r, err
}

// BindReceptionist records which peer now sits at the desk. An empty peer
// frees it.
func (d *DB) BindReceptionist(ctx context.Context, slug string, peer domain.PeerID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.db.ExecContext(ctx, `UPDATE receptionists SET socket = ?, updated_at = ? WHERE slug = ?`,
		string(peer), time.Now().UnixMilli(), slug)
	if err != nil {
		return fmt.Errorf("bind receptionist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("receptionist %s: %w", slug, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceptionist(s scanner) (domain.Receptionist, error) {
	var (
		r       domain.Receptionist
		socket  string
		updated int64
	)
	if err := s.Scan(&r.ID, &r.Slug, &r.Name, &socket, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan receptionist: %w", err)
	}
	r.Socket = domain.PeerID(socket)
	r.UpdatedAt = time.UnixMilli(updated)
	return r, nil
}

func validSlug(slug string) error {
	if slug == "" || len(slug) > domain.MaxSlugLen || strings.ContainsAny(slug, " /\t\n") {
		return fmt.Errorf("invalid slug %q", slug)
	}
	return nil
}

// Seed upserts the configured directory.
func (d *DB) Seed(ctx context.Context, rooms []domain.Room, desks []domain.Receptionist) error {
	for _, r := range rooms {
		if err := d.UpsertRoom(ctx, r); err != nil {
			return err
		}
	}
	for _, r := range desks {
		if err := d.UpsertReceptionist(ctx, r); err != nil {
			return err
		}
	}
	log.Info().Str("module", "storage").Int("rooms", len(rooms)).Int("receptionists", len(desks)).Msg("directory seeded")
	return nil
}
