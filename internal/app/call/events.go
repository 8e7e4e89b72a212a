package call

import (
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/webrtc/v4"
)

type intentKind int

const (
	intentInitiate intentKind = iota
	intentAccept
	intentReject
	intentCancel
	intentHangUp
	intentMute
)

func (k intentKind) String() string {
	switch k {
	case intentInitiate:
		return "initiate"
	case intentAccept:
		return "accept"
	case intentReject:
		return "reject"
	case intentCancel:
		return "cancel"
	case intentHangUp:
		return "hangup"
	case intentMute:
		return "mute"
	}
	return "unknown"
}

type intentResult struct {
	muted bool
	err   error
}

// intent is a local user action waiting for the loop's verdict.
type intent struct {
	kind  intentKind
	peer  domain.PeerID
	role  domain.Role
	reply chan intentResult
}

// stepDone carries the outcome of an async offer/answer step. Binding and
// media belong to whoever receives it.
type stepDone struct {
	sess    *Session
	binding core.NegotiationBinding
	media   core.MediaHandle
	local   webrtc.SessionDescription
	err     error
}

func (r stepDone) release() {
	if r.binding != nil {
		r.binding.Reset()
	}
	if r.media != nil {
		r.media.Release()
	}
}

type localCandidate struct {
	sess *Session
	cand webrtc.ICECandidateInit
}

type remoteStream struct {
	sess   *Session
	stream core.RemoteStream
}

type timeout struct {
	sess  *Session
	state core.CallState
	gen   uint64
}
