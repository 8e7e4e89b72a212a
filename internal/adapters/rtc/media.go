package rtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// Source captures local audio and knows which codecs it produces.
type Source interface {
	core.MediaSource
	Populate(me *webrtc.MediaEngine) error
}

// tracksHandle releases a set of captured tracks once.
type tracksHandle struct {
	tracks []webrtc.TrackLocal
	stop   func()
	once   sync.Once
}

func (h *tracksHandle) Tracks() []webrtc.TrackLocal { return h.tracks }

func (h *tracksHandle) Release() {
	h.once.Do(func() {
		if h.stop != nil {
			h.stop()
		}
	})
}

var newSampleTrack = webrtc.NewTrackLocalStaticSample

// opusSilence is one 20ms Opus frame of silence (TOC 0xf8, code 0).
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrame = 20 * time.Millisecond

// Silence is a Source for terminals without a capture device: a real Opus
// track that carries silence, so negotiation and playout behave as with a
// microphone.
type Silence struct{}

func (Silence) Populate(me *webrtc.MediaEngine) error {
	return me.RegisterDefaultCodecs()
}

func (Silence) Acquire(ctx context.Context) (core.MediaHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	track, err := newSampleTrack(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		"frontdesk-"+uuid.NewString(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: silence track: %v", core.ErrMediaUnavailable, err)
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(silenceFrame)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: silenceFrame}); err != nil {
					log.Debug().Str("module", "media").Err(err).Msg("silence write")
				}
			}
		}
	}()
	return &tracksHandle{
		tracks: []webrtc.TrackLocal{track},
		stop:   func() { close(done) },
	}, nil
}
