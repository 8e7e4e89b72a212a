package call

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"
)

// Playback consumes the remote stream of an active call.
type Playback interface {
	SetMuted(bool)
	Stop()
}

// PlaybackFactory starts playback of a remote stream. ctx ends with the session.
type PlaybackFactory func(ctx context.Context, peer domain.PeerID, stream core.RemoteStream) Playback

// Session is one call. It is created when the controller leaves Idle and
// dropped when it returns there; only the controller goroutine touches it.
type Session struct {
	id      string
	peer    domain.PeerID
	role    core.CallRole
	machine *fsm.FSM
	phase   core.Phase

	ctx    context.Context
	cancel context.CancelFunc

	// set once the in-flight step hands them over
	binding core.NegotiationBinding
	media   core.MediaHandle

	// busy while a worker produces the local description
	busy          bool
	localSent     bool
	remoteApplied bool

	localCandidates  []webrtc.ICECandidateInit
	remoteCandidates []webrtc.ICECandidateInit

	muted    bool
	playback Playback
	timer    *time.Timer
	// timerGen changes whenever the timer is re-armed or stopped, so a
	// timeout already queued for an older timer is recognisable.
	timerGen uint64

	closeOnce sync.Once
}

func newSession(parent context.Context, peer domain.PeerID, role core.CallRole) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:      uuid.NewString(),
		peer:    peer,
		role:    role,
		machine: newMachine(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Session) state() core.CallState {
	return stateByName[s.machine.Current()]
}

func (s *Session) can(event string) bool {
	return s.machine.Can(event)
}

// fire runs a transition. The session context is not passed on: "end" must
// succeed after the session was cancelled.
func (s *Session) fire(event string) error {
	return s.machine.Event(context.Background(), event)
}

func (s *Session) arm(d time.Duration, fn func(gen uint64)) {
	s.disarm()
	if d > 0 {
		gen := s.timerGen
		s.timer = time.AfterFunc(d, func() { fn(gen) })
	}
}

func (s *Session) disarm() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// bufferRemote keeps a candidate until the remote description is applied.
// It reports false when the buffer is full and c was dropped.
func (s *Session) bufferRemote(c webrtc.ICECandidateInit, max int) bool {
	if len(s.remoteCandidates) >= max {
		return false
	}
	s.remoteCandidates = append(s.remoteCandidates, c)
	return true
}

func (s *Session) bufferLocal(c webrtc.ICECandidateInit, max int) bool {
	if len(s.localCandidates) >= max {
		return false
	}
	s.localCandidates = append(s.localCandidates, c)
	return true
}

// close releases everything the session owns. Media and binding are torn
// down exactly once no matter how many paths reach here.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.disarm()
		if s.playback != nil {
			s.playback.Stop()
			s.playback = nil
		}
		if s.binding != nil {
			s.binding.Reset()
			s.binding = nil
		}
		if s.media != nil {
			s.media.Release()
			s.media = nil
		}
		s.localCandidates = nil
		s.remoteCandidates = nil
	})
}
