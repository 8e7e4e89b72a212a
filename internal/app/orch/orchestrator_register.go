package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/dkeye/FrontDesk/internal/storage"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownName = errors.New("not in the directory")
	ErrUnavailable = errors.New("unavailable")
)

// Register binds the connection id to a room (guest) or desk
// (receptionist) from the directory. The caller pushes presence once it has
// answered the terminal.
func (o *Orchestrator) Register(ctx context.Context, id domain.PeerID, name string, role domain.Role) (domain.Identity, error) {
	if err := domain.ValidateName(name); err != nil {
		return domain.Identity{}, err
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return domain.Identity{}, err
	}

	var display string
	switch role {
	case domain.RoleGuest:
		room, err := o.Directory.Room(ctx, name)
		if err != nil {
			return domain.Identity{}, lookupErr("room", name, err)
		}
		if room.Status == domain.RoomMaintenance {
			return domain.Identity{}, fmt.Errorf("room %s is under maintenance: %w", name, ErrUnavailable)
		}
		display = room.Name
	case domain.RoleReceptionist:
		desk, err := o.Directory.Receptionist(ctx, name)
		if err != nil {
			return domain.Identity{}, lookupErr("receptionist", name, err)
		}
		if desk.Socket != "" && desk.Socket != id {
			if _, _, live := o.Registry.Identity(desk.Socket); live {
				return domain.Identity{}, fmt.Errorf("receptionist %s is taken: %w", name, ErrUnavailable)
			}
		}
		display = desk.Name
	}

	ident, err := o.Registry.Register(id, name, display, role)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%s %s: %w", role, name, err)
	}
	if role == domain.RoleReceptionist {
		if err := o.Directory.BindReceptionist(ctx, name, id); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("bind receptionist")
		}
	}
	log.Info().Str("module", "orch").Str("peer", string(id)).Str("name", name).Str("role", string(role)).Msg("terminal registered")
	return ident, nil
}

// Unregister forgets id once its connection sig is gone. A newer
// connection under the same id is left alone.
func (o *Orchestrator) Unregister(ctx context.Context, id domain.PeerID, sig core.SignalConnection) {
	ident, name, registered := o.Registry.Unbind(id, sig)
	if !registered {
		return
	}
	if ident.Role == domain.RoleReceptionist {
		if err := o.Directory.BindReceptionist(ctx, name, ""); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("free receptionist")
		}
	}
	log.Info().Str("module", "orch").Str("peer", string(id)).Str("name", name).Msg("terminal left")
	o.PushPeers(ctx)
}

func lookupErr(kind, name string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, name, ErrUnknownName)
	}
	return fmt.Errorf("%s %s: %w", kind, name, err)
}
