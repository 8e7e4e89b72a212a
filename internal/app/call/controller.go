// Package call implements the call session controller: the state machine that
// owns one call's lifecycle on a terminal, drives the negotiation binding and
// talks to the remote terminal through the signaling gateway.
//
// All transitions happen on the goroutine running Controller.Run. Local
// intents, remote messages, binding callbacks, timers and finished async steps
// all arrive as events on one queue.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("call controller stopped")

const (
	DefaultPendingTimeout     = 30 * time.Second
	DefaultNegotiationTimeout = 20 * time.Second
	DefaultCandidateBuffer    = 32
)

type Options struct {
	// PendingTimeout reverts an unanswered Outbound/InboundPending call to Idle.
	PendingTimeout time.Duration
	// NegotiationTimeout aborts a call that does not reach Active after accept.
	NegotiationTimeout time.Duration
	// CandidateBuffer bounds candidates held while a description is missing.
	CandidateBuffer int
	// Playback, if set, is started when remote media flows.
	Playback PlaybackFactory
	// Notifier receives state changes; defaults to core.NopNotifier.
	Notifier core.Notifier
}

func (o *Options) withDefaults() {
	if o.PendingTimeout == 0 {
		o.PendingTimeout = DefaultPendingTimeout
	}
	if o.NegotiationTimeout == 0 {
		o.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if o.CandidateBuffer <= 0 {
		o.CandidateBuffer = DefaultCandidateBuffer
	}
	if o.Notifier == nil {
		o.Notifier = core.NopNotifier{}
	}
}

// Snapshot is a read-only view of the controller, refreshed after every event.
type Snapshot struct {
	Self       domain.Identity
	State      core.CallState
	Phase      core.Phase
	Peer       domain.PeerID
	Role       core.CallRole
	Busy       bool
	Muted      bool
	HoldsMedia bool
}

type Controller struct {
	self     domain.Identity
	bindings core.BindingFactory
	gateway  core.SignalGateway
	notify   core.Notifier
	opts     Options
	logger   zerolog.Logger

	events chan any
	done   chan struct{}

	// owned by the Run goroutine
	sess *Session
	root context.Context

	mu   sync.RWMutex
	snap Snapshot

	// afterEvent is a test hook run on the loop goroutine after each event.
	afterEvent func()
}

func NewController(self domain.Identity, bindings core.BindingFactory, gateway core.SignalGateway, opts Options) *Controller {
	opts.withDefaults()
	return &Controller{
		self:     self,
		bindings: bindings,
		gateway:  gateway,
		notify:   opts.Notifier,
		opts:     opts,
		logger:   selfLogger(self),
		events:   make(chan any, 64),
		done:     make(chan struct{}),
		snap:     Snapshot{Self: self, State: core.StateIdle},
	}
}

func selfLogger(self domain.Identity) zerolog.Logger {
	return log.With().
		Str("module", "call").
		Str("self", string(self.ID)).
		Logger()
}

// Identity returns the local identity of the latest registration.
func (c *Controller) Identity() domain.Identity { return c.Snapshot().Self }

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Run processes events until ctx is done. Any call in progress is ended and
// the peer is told so, best effort.
func (c *Controller) Run(ctx context.Context) error {
	c.root = ctx
	defer close(c.done)
	msgs := c.gateway.Messages()
	chEvents := c.gateway.Events()
	c.logger.Info().Str("role", string(c.self.Role)).Msg("controller started")

	for {
		select {
		case <-ctx.Done():
			if s := c.sess; s != nil {
				c.terminate(s, nil, c.farewell(s))
			}
			c.publish()
			c.logger.Info().Msg("controller stopped")
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			c.onMessage(m)
		case e, ok := <-chEvents:
			if !ok {
				chEvents = nil
				continue
			}
			if e == core.ChannelDisconnected {
				// frames read before the drop are queued already and go first
				c.drain(msgs)
			}
			c.onChannel(e)
		}
		c.publish()
		if c.afterEvent != nil {
			c.afterEvent()
		}
	}
}

func (c *Controller) drain(msgs <-chan core.Message) {
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				return
			}
			c.onMessage(m)
		default:
			return
		}
	}
}

func (c *Controller) handle(ev any) {
	switch ev := ev.(type) {
	case intent:
		ev.reply <- c.onIntent(ev)
	case stepDone:
		c.onStepDone(ev)
	case localCandidate:
		c.onLocalCandidate(ev)
	case remoteStream:
		c.onRemoteStream(ev)
	case timeout:
		c.onTimeout(ev)
	default:
		c.logger.Warn().Type("event", ev).Msg("unknown event")
	}
}

// post hands an event to the loop. It gives up when the loop is gone or the
// session the event belongs to has ended.
func (c *Controller) post(s *Session, ev any) bool {
	var sessDone <-chan struct{}
	if s != nil {
		sessDone = s.ctx.Done()
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	case <-sessDone:
		return false
	}
}

func (c *Controller) publish() {
	snap := Snapshot{Self: c.self, State: core.StateIdle}
	if s := c.sess; s != nil {
		snap = Snapshot{
			Self:       c.self,
			State:      s.state(),
			Phase:      s.phase,
			Peer:       s.peer,
			Role:       s.role,
			Busy:       s.busy,
			Muted:      s.muted,
			HoldsMedia: s.media != nil,
		}
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

func (c *Controller) slog(s *Session) *zerolog.Logger {
	l := c.logger.With().
		Str("session", s.id).
		Str("peer", string(s.peer)).
		Str("state", s.state().String()).
		Logger()
	return &l
}

// send delivers msg to peer, stamping the destination.
func (c *Controller) send(peer domain.PeerID, msg core.Message) error {
	msg.To = peer
	// not c.root: the farewell on shutdown must still be queued
	if err := c.gateway.Send(context.Background(), peer, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Type, peer, err)
	}
	return nil
}

// transition fires event on s and tells the presentation surface.
func (c *Controller) transition(s *Session, event string) {
	from := s.state()
	if err := s.fire(event); err != nil {
		c.slog(s).Error().Err(err).Str("event", event).Msg("transition refused")
		return
	}
	c.slog(s).Info().Str("from", from.String()).Str("event", event).Msg("transition")
	c.notify.StateChanged(core.StateChange{From: from, To: s.state(), Phase: s.phase, Peer: s.peer, Role: s.role})
}

// farewell picks the message that tells the peer a session is over.
func (c *Controller) farewell(s *Session) core.MessageType {
	if s.state() == core.StateInboundPending {
		return core.TypeReject
	}
	return core.TypeStop
}

// terminate is the single teardown path. Media and binding are released
// before the controller reports Idle. tell, when set, is sent to the peer
// first; reason, when set, is surfaced as an error.
func (c *Controller) terminate(s *Session, reason error, tell core.MessageType) {
	if tell != "" {
		if err := c.send(s.peer, core.Message{Type: tell}); err != nil {
			c.slog(s).Warn().Err(err).Msg("could not notify peer of teardown")
		}
	}
	from := s.state()
	s.close()
	if err := s.fire(evEnd); err != nil {
		c.slog(s).Error().Err(err).Msg("end transition refused")
	}
	if c.sess == s {
		c.sess = nil
	}
	ev := c.slog(s).Info().Str("from", from.String())
	if reason != nil {
		ev = ev.AnErr("reason", reason)
	}
	ev.Msg("session terminated")

	c.notify.StateChanged(core.StateChange{From: from, To: core.StateTerminated, Peer: s.peer, Role: s.role})
	c.notify.StateChanged(core.StateChange{From: core.StateTerminated, To: core.StateIdle, Peer: s.peer, Role: s.role})
	if reason != nil {
		c.notify.ErrorOccurred(core.KindOf(reason), reason)
	}
}

// start opens a session with peer and arms the pending timeout.
func (c *Controller) start(peer domain.PeerID, role core.CallRole, event string) *Session {
	parent := c.root
	if parent == nil {
		parent = context.Background()
	}
	s := newSession(parent, peer, role)
	c.sess = s
	c.transition(s, event)
	c.armTimeout(s, c.opts.PendingTimeout)
	return s
}

func (c *Controller) armTimeout(s *Session, d time.Duration) {
	state := s.state()
	s.arm(d, func(gen uint64) {
		c.post(s, timeout{sess: s, state: state, gen: gen})
	})
}

// negotiate runs on its own goroutine. It owns a fresh binding and the media
// until the loop accepts the result; if the loop is gone or the session was
// dropped it releases them itself.
func (c *Controller) negotiate(s *Session, produce func(ctx context.Context, b core.NegotiationBinding, m core.MediaHandle) (webrtc.SessionDescription, error)) {
	res := stepDone{sess: s}
	defer func() {
		if !c.post(s, res) {
			res.release()
		}
	}()

	b, err := c.bindings.NewBinding(s.peer)
	if err != nil {
		res.err = fmt.Errorf("%w: new binding: %v", core.ErrNegotiation, err)
		return
	}
	res.binding = b
	b.OnLocalCandidate(func(ci webrtc.ICECandidateInit) {
		c.post(s, localCandidate{sess: s, cand: ci})
	})
	b.OnRemoteStream(func(rs core.RemoteStream) {
		c.post(s, remoteStream{sess: s, stream: rs})
	})

	media, err := b.AcquireLocalMedia(s.ctx)
	if err != nil {
		res.err = err
		return
	}
	res.media = media
	if err := s.ctx.Err(); err != nil {
		res.err = err
		return
	}
	res.local, res.err = produce(s.ctx, b, media)
}

// flushRemote applies candidates that arrived before the remote description.
func (c *Controller) flushRemote(s *Session) {
	for _, ci := range s.remoteCandidates {
		if err := s.binding.AddRemoteCandidate(ci); err != nil {
			c.slog(s).Warn().Err(err).Msg("buffered remote candidate rejected")
		}
	}
	s.remoteCandidates = nil
}

// flushLocal sends candidates gathered before the local description went out.
func (c *Controller) flushLocal(s *Session) {
	for _, ci := range s.localCandidates {
		if err := c.send(s.peer, core.Candidate(ci)); err != nil {
			c.slog(s).Warn().Err(err).Msg("local candidate not sent")
		}
	}
	s.localCandidates = nil
}
