package call

import (
	"context"
	"fmt"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/pion/webrtc/v4"
)

// onMessage applies one message from the signaling channel. Messages from
// anyone but the current peer are stale and dropped, except an initiate
// while Idle.
func (c *Controller) onMessage(m core.Message) {
	if err := m.Validate(); err != nil {
		c.logger.Warn().Err(err).Msg("malformed message dropped")
		return
	}
	if m.Type == core.TypeInitiate {
		c.onInitiate(m)
		return
	}
	if !m.Type.Call() {
		c.logger.Debug().Str("type", string(m.Type)).Msg("ignoring non-call message")
		return
	}
	s := c.sess
	if s == nil || m.From != s.peer {
		c.logger.Debug().
			Err(core.ErrStaleMessage).
			Str("type", string(m.Type)).
			Str("from", string(m.From)).
			Msg("dropped")
		return
	}

	switch m.Type {
	case core.TypeStop:
		c.notify.StatusMessage("Call ended by peer")
		c.terminate(s, nil, "")
	case core.TypeReject:
		c.notify.StatusMessage("Call rejected")
		c.terminate(s, nil, "")
	case core.TypeOffer:
		c.onOffer(s, *m.SDP)
	case core.TypeAnswer:
		c.onAnswer(s, *m.SDP)
	case core.TypeCandidate:
		c.onRemoteCandidate(s, *m.Candidate)
	}
}

func (c *Controller) onInitiate(m core.Message) {
	s := c.sess
	switch {
	case s == nil:
		if m.From == "" || m.From == c.self.ID {
			c.logger.Warn().Str("from", string(m.From)).Msg("initiate without usable sender")
			return
		}
		if m.Role != "" && m.Role != c.self.Role.Counterpart() {
			c.logger.Info().Str("from", string(m.From)).Str("role", string(m.Role)).Msg("refusing call from same role")
			if err := c.send(m.From, core.Reject()); err != nil {
				c.logger.Warn().Err(err).Msg("reject not sent")
			}
			return
		}
		c.start(m.From, core.Recipient, evRing)
		c.notify.StatusMessage(fmt.Sprintf("Incoming call from %s", m.From))

	case m.From != s.peer:
		// one call at a time; the other caller must not hang in OutboundPending
		c.slog(s).Info().Str("from", string(m.From)).Msg("busy, rejecting second caller")
		if err := c.send(m.From, core.Reject()); err != nil {
			c.slog(s).Warn().Err(err).Msg("reject not sent")
		}

	case s.state() == core.StateOutboundPending && !s.busy && c.self.ID < s.peer:
		// both sides dialled each other; the lower id becomes the recipient
		s.role = core.Recipient
		c.transition(s, evYield)
		c.armTimeout(s, c.opts.PendingTimeout)
		c.notify.StatusMessage(fmt.Sprintf("Incoming call from %s", m.From))

	default:
		c.slog(s).Debug().Msg("duplicate initiate ignored")
	}
}

// onOffer: the recipient accepted and sent its own offer; we answer it.
func (c *Controller) onOffer(s *Session, offer webrtc.SessionDescription) {
	if s.state() != core.StateOutboundPending || s.busy {
		c.slog(s).Warn().Bool("busy", s.busy).Msg("unexpected offer dropped")
		return
	}
	s.busy = true
	c.armTimeout(s, c.opts.NegotiationTimeout)
	go c.negotiate(s, func(ctx context.Context, b core.NegotiationBinding, m core.MediaHandle) (webrtc.SessionDescription, error) {
		return b.CreateAnswer(ctx, offer, m)
	})
	c.notify.StatusMessage("Peer accepted, connecting...")
}

func (c *Controller) onAnswer(s *Session, answer webrtc.SessionDescription) {
	if s.state() != core.StateNegotiating || s.role != core.Recipient || s.binding == nil || s.remoteApplied {
		c.slog(s).Warn().Msg("unexpected answer dropped")
		return
	}
	if err := s.binding.ApplyAnswer(s.ctx, answer); err != nil {
		c.terminate(s, fmt.Errorf("apply answer: %w", err), core.TypeStop)
		return
	}
	s.remoteApplied = true
	c.flushRemote(s)
	s.phase = core.PhaseCandidateGathering
	s.disarm()
	c.transition(s, evConnected)
	c.notify.StatusMessage("In Call")
}

func (c *Controller) onRemoteCandidate(s *Session, ci webrtc.ICECandidateInit) {
	if s.binding == nil || !s.remoteApplied {
		if !s.bufferRemote(ci, c.opts.CandidateBuffer) {
			c.slog(s).Debug().Msg("remote candidate buffer full, dropped")
		}
		return
	}
	if err := s.binding.AddRemoteCandidate(ci); err != nil {
		c.slog(s).Warn().Err(err).Msg("add remote candidate")
	}
}

// onStepDone takes over binding and media from a finished offer/answer step.
func (c *Controller) onStepDone(r stepDone) {
	s := c.sess
	if s == nil || r.sess != s {
		c.logger.Debug().Err(core.ErrStaleMessage).Msg("step finished for a dropped session, releasing")
		r.release()
		return
	}
	s.busy = false
	if r.err != nil {
		r.release()
		c.terminate(s, r.err, c.farewell(s))
		return
	}
	s.binding, s.media = r.binding, r.media

	if s.role == core.Recipient {
		// we offered: wait for the answer
		if err := c.send(s.peer, core.Offer(r.local)); err != nil {
			c.terminate(s, err, "")
			return
		}
		s.localSent = true
		s.phase = core.PhaseDescriptionPending
		c.transition(s, evAccept)
		c.flushLocal(s)
		return
	}

	// we answered: the offer is applied, both descriptions are set
	if err := c.send(s.peer, core.Answer(r.local)); err != nil {
		c.terminate(s, err, "")
		return
	}
	s.localSent = true
	s.remoteApplied = true
	s.phase = core.PhaseCandidateGathering
	c.transition(s, evAnswerSent)
	c.flushLocal(s)
	c.flushRemote(s)
	s.disarm()
	c.transition(s, evConnected)
	c.notify.StatusMessage("In Call")
}

func (c *Controller) onLocalCandidate(ev localCandidate) {
	s := c.sess
	if s == nil || ev.sess != s {
		return
	}
	if !s.localSent {
		if !s.bufferLocal(ev.cand, c.opts.CandidateBuffer) {
			c.slog(s).Debug().Msg("local candidate buffer full, dropped")
		}
		return
	}
	if err := c.send(s.peer, core.Candidate(ev.cand)); err != nil {
		c.slog(s).Warn().Err(err).Msg("local candidate not sent")
	}
}

func (c *Controller) onRemoteStream(ev remoteStream) {
	s := c.sess
	if s == nil || ev.sess != s {
		return
	}
	c.slog(s).Info().Str("stream", ev.stream.ID()).Msg("remote media flowing")
	if c.opts.Playback != nil && s.playback == nil {
		s.playback = c.opts.Playback(s.ctx, s.peer, ev.stream)
		s.playback.SetMuted(s.muted)
	}
	c.notify.StatusMessage("Audio connected")
}

func (c *Controller) onTimeout(ev timeout) {
	s := c.sess
	if s == nil || ev.sess != s || ev.gen != s.timerGen {
		return
	}
	c.notify.StatusMessage("No response from peer")
	c.terminate(s, fmt.Errorf("no progress since %s: %w", ev.state, core.ErrTimeout), c.farewell(s))
}

// onChannel reacts to the signaling connection. After a disconnect nothing
// can be reconciled with the peer, so a call in progress ends locally.
func (c *Controller) onChannel(e core.ChannelEvent) {
	switch e {
	case core.ChannelConnected:
		c.refreshIdentity()
		c.notify.StatusMessage("Connected")
	case core.ChannelDisconnected:
		c.notify.StatusMessage("Disconnected")
		if s := c.sess; s != nil {
			c.terminate(s, fmt.Errorf("call with %s: %w", s.peer, core.ErrChannelUnavailable), "")
		}
	}
}

// refreshIdentity adopts the peer id of the latest registration. The server
// may issue a new one on reconnect; a session negotiated under the old id
// cannot continue.
func (c *Controller) refreshIdentity() {
	id, ok := c.gateway.LocalIdentity()
	if !ok || id == c.self {
		return
	}
	c.logger.Info().Str("old", string(c.self.ID)).Str("new", string(id.ID)).Msg("local identity changed")
	c.self = id
	c.logger = selfLogger(id)
	if s := c.sess; s != nil {
		c.terminate(s, fmt.Errorf("call with %s: identity changed: %w", s.peer, core.ErrChannelUnavailable), "")
	}
}
