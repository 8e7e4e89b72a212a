package orch

import (
	"context"
	"sort"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
)

// Peers is the directory as terminals see it: every room and desk, with
// the peer id of whoever is registered under it.
func (o *Orchestrator) Peers(ctx context.Context) ([]domain.Peer, error) {
	rooms, err := o.Directory.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	desks, err := o.Directory.Receptionists(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Peer, 0, len(rooms)+len(desks))
	for _, r := range rooms {
		out = append(out, o.peer(domain.RoleGuest, r.Slug, r.Name))
	}
	for _, d := range desks {
		out = append(out, o.peer(domain.RoleReceptionist, d.Slug, d.Name))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (o *Orchestrator) peer(role domain.Role, name, display string) domain.Peer {
	p := domain.Peer{Name: name, DisplayName: display, Role: role}
	if id, ok := o.Registry.Holder(role, name); ok {
		p.ID = id
		p.Available = true
	}
	return p
}

// PushPeers sends the current directory to every registered terminal.
func (o *Orchestrator) PushPeers(ctx context.Context) {
	peers, err := o.Peers(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("build peers snapshot")
		return
	}
	frame, err := core.Message{Type: core.TypePeers, Peers: peers}.Marshal()
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal peers")
		return
	}
	for _, snap := range o.Registry.Registered() {
		o.deliver(snap.Identity.ID, snap.Signal, core.TypePeers, frame)
	}
}
