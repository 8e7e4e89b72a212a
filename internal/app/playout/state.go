package playout

type State int32

const (
	StatePlaying State = iota
	StateMuted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateMuted:
		return "muted"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Stats counts what a Player has seen of the remote stream.
type Stats struct {
	Packets uint64
	Bytes   uint64
	// Muted counts packets read while muted and not handed to the sink.
	Muted uint64
	// Lost is estimated from gaps in RTP sequence numbers.
	Lost uint64
}
