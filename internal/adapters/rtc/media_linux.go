//go:build linux

package rtc

import (
	"context"
	"fmt"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Microphone captures the default audio input through pion/mediadevices and
// encodes it to Opus.
type Microphone struct {
	selector *mediadevices.CodecSelector
}

func NewMicrophone() (*Microphone, error) {
	params, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	return &Microphone{
		selector: mediadevices.NewCodecSelector(mediadevices.WithAudioEncoders(&params)),
	}, nil
}

func (m *Microphone) Populate(me *webrtc.MediaEngine) error {
	m.selector.Populate(me)
	return nil
}

func (m *Microphone) Acquire(ctx context.Context) (core.MediaHandle, error) {
	logger := log.With().Str("module", "media").Logger()
	devices := mediadevices.EnumerateDevices()
	inputs := 0
	for _, d := range devices {
		if d.Kind == mediadevices.AudioInput {
			inputs++
			logger.Debug().Str("label", d.Label).Msg("audio input")
		}
	}
	if inputs == 0 {
		return nil, fmt.Errorf("%w: no audio input device", core.ErrMediaUnavailable)
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(*mediadevices.MediaTrackConstraints) {},
		Codec: m.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMediaUnavailable, err)
	}

	audio := stream.GetAudioTracks()
	h := &tracksHandle{stop: func() {
		for _, t := range audio {
			if err := t.Close(); err != nil {
				logger.Warn().Err(err).Msg("close capture track")
			}
		}
	}}
	for _, t := range audio {
		t.OnEnded(func(err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("capture ended")
			}
		})
		h.tracks = append(h.tracks, t)
	}
	if err := ctx.Err(); err != nil {
		h.Release()
		return nil, err
	}
	logger.Info().Int("tracks", len(h.tracks)).Msg("microphone captured")
	return h, nil
}
