package playout

import "github.com/pion/rtp"

// Sink receives the remote audio packets.
type Sink interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// Discard drops every packet; the Player still keeps its stats.
type Discard struct{}

func (Discard) WriteRTP(*rtp.Packet) error { return nil }
func (Discard) Close() error               { return nil }
