package call

import (
	"context"
	"fmt"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Initiate starts a call to peer, whose directory role is role. It returns
// once the initiate message is queued; the answer arrives asynchronously.
func (c *Controller) Initiate(ctx context.Context, peer domain.PeerID, role domain.Role) error {
	return c.intent(ctx, intent{kind: intentInitiate, peer: peer, role: role}).err
}

// Accept picks up the pending inbound call. The local offer is produced in
// the background; failures surface through the Notifier.
func (c *Controller) Accept(ctx context.Context) error {
	return c.intent(ctx, intent{kind: intentAccept}).err
}

// Reject declines the pending inbound call.
func (c *Controller) Reject(ctx context.Context) error {
	return c.intent(ctx, intent{kind: intentReject}).err
}

// Cancel withdraws an outbound call the peer has not picked up.
func (c *Controller) Cancel(ctx context.Context) error {
	return c.intent(ctx, intent{kind: intentCancel}).err
}

// HangUp ends whatever call exists: it cancels, rejects or stops as fits.
func (c *Controller) HangUp(ctx context.Context) error {
	return c.intent(ctx, intent{kind: intentHangUp}).err
}

// ToggleMute flips muting of the remote audio and returns the new setting.
func (c *Controller) ToggleMute(ctx context.Context) (bool, error) {
	r := c.intent(ctx, intent{kind: intentMute})
	return r.muted, r.err
}

func (c *Controller) intent(ctx context.Context, in intent) intentResult {
	in.reply = make(chan intentResult, 1)
	select {
	case c.events <- in:
	case <-ctx.Done():
		return intentResult{err: ctx.Err()}
	case <-c.done:
		return intentResult{err: ErrClosed}
	}
	select {
	case r := <-in.reply:
		return r
	case <-ctx.Done():
		return intentResult{err: ctx.Err()}
	case <-c.done:
		return intentResult{err: ErrClosed}
	}
}

func (c *Controller) onIntent(in intent) intentResult {
	var res intentResult
	switch in.kind {
	case intentInitiate:
		res.err = c.initiate(in.peer, in.role)
	case intentAccept:
		res.err = c.accept()
	case intentReject:
		res.err = c.end(core.StateInboundPending, core.TypeReject)
	case intentCancel:
		res.err = c.end(core.StateOutboundPending, core.TypeStop)
	case intentHangUp:
		if c.sess == nil {
			res.err = fmt.Errorf("hang up: %w: no call", core.ErrInvalidState)
			break
		}
		c.terminate(c.sess, nil, c.farewell(c.sess))
	case intentMute:
		res.muted, res.err = c.mute()
	}
	if res.err != nil {
		c.logger.Info().Err(res.err).Str("intent", in.kind.String()).Msg("intent refused")
	}
	return res
}

func (c *Controller) initiate(peer domain.PeerID, role domain.Role) error {
	if c.sess != nil {
		return fmt.Errorf("initiate: %w: call with %s in progress", core.ErrBusy, c.sess.peer)
	}
	if peer == "" || peer == c.self.ID {
		return fmt.Errorf("initiate: %w: bad target %q", core.ErrInvalidState, peer)
	}
	if role != "" && role != c.self.Role.Counterpart() {
		return fmt.Errorf("initiate: %w: a %s cannot call a %s", core.ErrInvalidState, c.self.Role, role)
	}
	s := c.start(peer, core.Initiator, evDial)
	if err := c.send(peer, core.Initiate(c.self.Role)); err != nil {
		c.terminate(s, err, "")
		return err
	}
	c.notify.StatusMessage(fmt.Sprintf("Calling %s...", peer))
	return nil
}

// accept answers an inbound call with our own offer: the recipient is the
// offerer, the caller answers.
func (c *Controller) accept() error {
	s := c.sess
	switch {
	case s == nil:
		return fmt.Errorf("accept: %w: no call", core.ErrInvalidState)
	case s.busy:
		return fmt.Errorf("accept: %w", core.ErrBusy)
	case !s.can(evAccept):
		return fmt.Errorf("accept: %w: call is %s", core.ErrInvalidState, s.state())
	}
	s.busy = true
	c.armTimeout(s, c.opts.NegotiationTimeout)
	go c.negotiate(s, func(ctx context.Context, b core.NegotiationBinding, m core.MediaHandle) (webrtc.SessionDescription, error) {
		return b.CreateOffer(ctx, m)
	})
	c.notify.StatusMessage("Accepting call...")
	return nil
}

// end implements Reject and Cancel: valid only in want, it tells the peer
// with msg and drops the session. An in-flight step is abandoned.
func (c *Controller) end(want core.CallState, msg core.MessageType) error {
	s := c.sess
	if s == nil || s.state() != want {
		return fmt.Errorf("%s: %w: no %s call", msg, core.ErrInvalidState, want)
	}
	c.terminate(s, nil, msg)
	return nil
}

func (c *Controller) mute() (bool, error) {
	s := c.sess
	if s == nil || !s.state().HoldsMedia() {
		return false, fmt.Errorf("mute: %w: no connected call", core.ErrInvalidState)
	}
	s.muted = !s.muted
	if s.playback != nil {
		s.playback.SetMuted(s.muted)
	}
	if s.muted {
		c.notify.StatusMessage("Muted")
	} else {
		c.notify.StatusMessage("Unmuted")
	}
	return s.muted, nil
}
