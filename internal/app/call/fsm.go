package call

import (
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/looplab/fsm"
)

const (
	evDial       = "dial"
	evRing       = "ring"
	evYield      = "yield"
	evAccept     = "accept"
	evAnswerSent = "answer_sent"
	evConnected  = "connected"
	evEnd        = "end"
)

var stateByName = map[string]core.CallState{
	core.StateIdle.String():            core.StateIdle,
	core.StateOutboundPending.String(): core.StateOutboundPending,
	core.StateInboundPending.String():  core.StateInboundPending,
	core.StateNegotiating.String():     core.StateNegotiating,
	core.StateActive.String():          core.StateActive,
	core.StateTerminated.String():      core.StateTerminated,
}

// newMachine returns the transition table of one call session. Each session
// gets its own machine starting at Idle.
func newMachine() *fsm.FSM {
	idle := core.StateIdle.String()
	out := core.StateOutboundPending.String()
	in := core.StateInboundPending.String()
	neg := core.StateNegotiating.String()
	active := core.StateActive.String()
	return fsm.NewFSM(
		idle,
		fsm.Events{
			{Name: evDial, Src: []string{idle}, Dst: out},
			{Name: evRing, Src: []string{idle}, Dst: in},
			// both sides called each other; the lower id yields
			{Name: evYield, Src: []string{out}, Dst: in},
			// recipient sent its offer (role inversion)
			{Name: evAccept, Src: []string{in}, Dst: neg},
			// initiator answered the recipient's offer
			{Name: evAnswerSent, Src: []string{out}, Dst: neg},
			{Name: evConnected, Src: []string{neg}, Dst: active},
			{Name: evEnd, Src: []string{out, in, neg, active}, Dst: core.StateTerminated.String()},
		},
		fsm.Callbacks{},
	)
}
