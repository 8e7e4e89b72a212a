//go:build !linux

package rtc

import (
	"context"
	"fmt"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/pion/webrtc/v4"
)

// Microphone capture needs the malgo driver, wired on linux only. Elsewhere
// acquisition always fails and callers fall back to Silence.
type Microphone struct{}

func NewMicrophone() (*Microphone, error) { return &Microphone{}, nil }

func (*Microphone) Populate(me *webrtc.MediaEngine) error {
	return me.RegisterDefaultCodecs()
}

func (*Microphone) Acquire(context.Context) (core.MediaHandle, error) {
	return nil, fmt.Errorf("%w: microphone capture not supported on this platform", core.ErrMediaUnavailable)
}
