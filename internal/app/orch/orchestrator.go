// Package orch ties the connection registry, the directory store and the
// backpressure policy together for the signaling server.
package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/FrontDesk/internal/app"
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotRegistered = errors.New("sender not registered")
	ErrUnknownPeer   = errors.New("unknown peer")
)

// Directory is the persistent part of the front desk: which rooms and
// desks exist.
type Directory interface {
	Room(ctx context.Context, slug string) (domain.Room, error)
	Rooms(ctx context.Context) ([]domain.Room, error)
	Receptionist(ctx context.Context, slug string) (domain.Receptionist, error)
	Receptionists(ctx context.Context) ([]domain.Receptionist, error)
	BindReceptionist(ctx context.Context, slug string, peer domain.PeerID) error
	SetRoomStatus(ctx context.Context, slug string, status domain.RoomStatus) error
}

type Orchestrator struct {
	Registry  *app.Registry
	Directory Directory
	Policy    app.Policy
}

// Relay stamps the sender on a call message and queues it for msg.To.
func (o *Orchestrator) Relay(from domain.PeerID, msg core.Message) error {
	if _, _, ok := o.Registry.Identity(from); !ok {
		return ErrNotRegistered
	}
	sig, ok := o.Registry.Signal(msg.To)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, msg.To)
	}
	msg.From = from
	frame, err := msg.Marshal()
	if err != nil {
		return err
	}
	o.deliver(msg.To, sig, msg.Type, frame)
	return nil
}

func (o *Orchestrator) deliver(to domain.PeerID, sig core.SignalConnection, t core.MessageType, frame core.Frame) {
	err := sig.TrySend(frame)
	if err == nil || o.Policy == nil {
		return
	}
	action := o.Policy.OnBackPressure(to, t)
	log.Warn().Err(err).Str("module", "orch").Str("peer", string(to)).Str("type", string(t)).Str("action", action.String()).Msg("send failed")
	switch action {
	case app.KickMember:
		o.Registry.Cancel(to)
	case app.DropFrame, app.NoAction:
	}
}
