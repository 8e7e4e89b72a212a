package app

import (
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

func (a BackpressureAction) String() string {
	switch a {
	case DropFrame:
		return "drop"
	case KickMember:
		return "kick"
	default:
		return "none"
	}
}

// Policy decides what happens to a recipient whose send queue is full.
type Policy interface {
	OnBackPressure(to domain.PeerID, t core.MessageType) BackpressureAction
}

// SimplePolicy drops candidates and directory pushes and kicks the
// recipient for anything else: a lost offer or stop leaves both terminals
// out of step.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ domain.PeerID, t core.MessageType) BackpressureAction {
	switch t {
	case core.TypeCandidate, core.TypePeers:
		return DropFrame
	}
	return KickMember
}
