package core

import (
	"context"

	"github.com/dkeye/FrontDesk/internal/domain"
)

// Frame is a raw signaling payload.
type Frame []byte

// SignalConnection is the server's outbound frame sink for one connected
// peer. Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

type ChannelEvent int

const (
	ChannelConnected ChannelEvent = iota
	ChannelDisconnected
)

func (e ChannelEvent) String() string {
	if e == ChannelConnected {
		return "Connected"
	}
	return "Disconnected"
}

// SignalGateway is the terminal's view of the signaling channel.
// Send is fire-and-forget: a nil error only means the message was queued.
//
// LocalIdentity reports the identity of the latest registration. It is
// updated before ChannelConnected is emitted, and the server may hand out a
// different peer id on every reconnect.
type SignalGateway interface {
	Send(ctx context.Context, to domain.PeerID, msg Message) error
	Messages() <-chan Message
	Events() <-chan ChannelEvent
	LocalIdentity() (domain.Identity, bool)
}
