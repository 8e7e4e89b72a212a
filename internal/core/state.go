package core

import (
	"fmt"

	"github.com/dkeye/FrontDesk/internal/domain"
)

// CallState is the lifecycle state of the local call session.
type CallState int

const (
	StateIdle CallState = iota
	StateOutboundPending
	StateInboundPending
	StateNegotiating
	StateActive
	StateTerminated
)

func (s CallState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOutboundPending:
		return "OutboundPending"
	case StateInboundPending:
		return "InboundPending"
	case StateNegotiating:
		return "Negotiating"
	case StateActive:
		return "Active"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Pending reports whether the session waits for the other side to pick up.
func (s CallState) Pending() bool {
	return s == StateOutboundPending || s == StateInboundPending
}

// HoldsMedia reports whether a session in this state owns the microphone.
func (s CallState) HoldsMedia() bool {
	return s == StateNegotiating || s == StateActive
}

// CallRole says which side started the session setup.
type CallRole int

const (
	Initiator CallRole = iota
	Recipient
)

func (r CallRole) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "recipient"
}

// Phase refines StateNegotiating.
type Phase int

const (
	PhaseNone Phase = iota
	// PhaseDescriptionPending: local description sent, remote one not applied yet.
	PhaseDescriptionPending
	// PhaseCandidateGathering: both descriptions applied, waiting for media.
	PhaseCandidateGathering
)

func (p Phase) String() string {
	switch p {
	case PhaseDescriptionPending:
		return "DescriptionPending"
	case PhaseCandidateGathering:
		return "CandidateGathering"
	default:
		return "None"
	}
}

// StateChange is what the presentation surface receives on every transition.
type StateChange struct {
	From  CallState
	To    CallState
	Phase Phase
	Peer  domain.PeerID
	Role  CallRole
}
