// Package rtc binds the call controller to pion/webrtc: one Connection per
// call session, created by a Factory sharing one configured API.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/rtcp"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Connection is a core.NegotiationBinding over a single PeerConnection.
type Connection struct {
	pc     *webrtc.PeerConnection
	peer   domain.PeerID
	source Source
	logger zerolog.Logger

	mu       sync.Mutex
	onICE    func(webrtc.ICECandidateInit)
	onStream func(core.RemoteStream)
	streamed bool

	closeOnce sync.Once
}

func newConnection(pc *webrtc.PeerConnection, peer domain.PeerID, source Source, logger zerolog.Logger) *Connection {
	c := &Connection{pc: pc, peer: peer, source: source, logger: logger}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")
		go c.drainRTCP(receiver)
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		c.mu.Lock()
		fn := c.onStream
		first := !c.streamed && fn != nil
		if first {
			c.streamed = true
		}
		c.mu.Unlock()
		if first {
			fn(track)
		}
	})
	return c
}

// drainRTCP keeps the interceptors fed and notes when the peer says goodbye.
func (c *Connection) drainRTCP(receiver *webrtc.RTPReceiver) {
	for {
		pkts, _, err := receiver.ReadRTCP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug().Err(err).Msg("rtcp read stopped")
			}
			return
		}
		for _, p := range pkts {
			if bye, ok := p.(*rtcp.Goodbye); ok {
				c.logger.Info().Uints32("ssrc", bye.Sources).Str("reason", bye.Reason).Msg("remote sent RTCP goodbye")
			}
		}
	}
}

func (c *Connection) AcquireLocalMedia(ctx context.Context) (core.MediaHandle, error) {
	return c.source.Acquire(ctx)
}

func (c *Connection) CreateOffer(ctx context.Context, media core.MediaHandle) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if c.pc.SignalingState() != webrtc.SignalingStateStable || c.pc.LocalDescription() != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: offer in signaling state %s", core.ErrNegotiation, c.pc.SignalingState())
	}
	if err := c.addTracks(media); err != nil {
		return webrtc.SessionDescription{}, err
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: create offer: %v", core.ErrNegotiation, err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: set local offer: %v", core.ErrNegotiation, err)
	}
	return offer, nil
}

func (c *Connection) CreateAnswer(ctx context.Context, offer webrtc.SessionDescription, media core.MediaHandle) (webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if offer.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: expected offer, got %s", core.ErrNegotiation, offer.Type)
	}
	if err := requireAudio(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: set remote offer: %v", core.ErrNegotiation, err)
	}
	if err := c.addTracks(media); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: create answer: %v", core.ErrNegotiation, err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: set local answer: %v", core.ErrNegotiation, err)
	}
	return answer, nil
}

func (c *Connection) ApplyAnswer(ctx context.Context, answer webrtc.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		return fmt.Errorf("%w: expected answer, got %s", core.ErrNegotiation, answer.Type)
	}
	if st := c.pc.SignalingState(); st != webrtc.SignalingStateHaveLocalOffer {
		return fmt.Errorf("%w: answer in signaling state %s", core.ErrNegotiation, st)
	}
	if err := requireAudio(answer); err != nil {
		return err
	}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("%w: set remote answer: %v", core.ErrNegotiation, err)
	}
	return nil
}

func (c *Connection) AddRemoteCandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *Connection) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *Connection) OnRemoteStream(fn func(core.RemoteStream)) {
	c.mu.Lock()
	c.onStream = fn
	c.mu.Unlock()
}

func (c *Connection) Reset() {
	c.closeOnce.Do(func() {
		c.OnLocalCandidate(nil)
		c.OnRemoteStream(nil)
		if err := c.pc.Close(); err != nil {
			c.logger.Error().Err(err).Msg("close error")
			return
		}
		c.logger.Info().Msg("closed")
	})
}

// addTracks attaches the captured tracks. Without any, an audio transceiver
// is still added receive-only so the description carries an audio m-line.
func (c *Connection) addTracks(media core.MediaHandle) error {
	var tracks []webrtc.TrackLocal
	if media != nil {
		tracks = media.Tracks()
	}
	if len(tracks) == 0 {
		if _, err := c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("%w: add recvonly transceiver: %v", core.ErrNegotiation, err)
		}
		return nil
	}
	for _, t := range tracks {
		if _, err := c.pc.AddTrack(t); err != nil {
			return fmt.Errorf("%w: add track %s: %v", core.ErrNegotiation, t.ID(), err)
		}
	}
	return nil
}

// requireAudio rejects descriptions without an active audio section; calls
// are audio only.
func requireAudio(desc webrtc.SessionDescription) error {
	var parsed sdp.SessionDescription
	if err := parsed.UnmarshalString(desc.SDP); err != nil {
		return fmt.Errorf("%w: malformed %s: %v", core.ErrNegotiation, desc.Type, err)
	}
	for _, m := range parsed.MediaDescriptions {
		if m.MediaName.Media == "audio" && m.MediaName.Port.Value != 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no audio", core.ErrNegotiation, desc.Type)
}
