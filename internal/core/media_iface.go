package core

import (
	"context"

	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// MediaHandle owns captured local audio. Release stops capture; it is safe
// to call more than once.
type MediaHandle interface {
	Tracks() []webrtc.TrackLocal
	Release()
}

// MediaSource captures local audio.
type MediaSource interface {
	Acquire(ctx context.Context) (MediaHandle, error)
}

// RemoteStream is inbound media from the peer.
type RemoteStream interface {
	ID() string
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// NegotiationBinding wraps one peer negotiation object. A binding serves a
// single session and is never reused after Reset.
type NegotiationBinding interface {
	// AcquireLocalMedia requests the microphone. Fails with ErrMediaUnavailable.
	AcquireLocalMedia(ctx context.Context) (MediaHandle, error)
	// CreateOffer binds media tracks, creates an offer and sets it local.
	CreateOffer(ctx context.Context, media MediaHandle) (webrtc.SessionDescription, error)
	// CreateAnswer applies offer as remote, binds tracks, creates and sets a local answer.
	CreateAnswer(ctx context.Context, offer webrtc.SessionDescription, media MediaHandle) (webrtc.SessionDescription, error)
	// ApplyAnswer sets answer as the remote description of an outstanding offer.
	ApplyAnswer(ctx context.Context, answer webrtc.SessionDescription) error
	// AddRemoteCandidate is best effort; callers log failures.
	AddRemoteCandidate(c webrtc.ICECandidateInit) error
	// OnLocalCandidate sets a callback for newly gathered local candidates.
	OnLocalCandidate(func(webrtc.ICECandidateInit))
	// OnRemoteStream sets a callback fired once when remote media starts flowing.
	OnRemoteStream(func(RemoteStream))
	// Reset tears the negotiation object and its tracks down. Idempotent.
	Reset()
}

// BindingFactory hands out a fresh binding per session.
type BindingFactory interface {
	NewBinding(peer domain.PeerID) (NegotiationBinding, error)
}
