package core

import "errors"

var (
	// ErrMediaUnavailable: microphone absent or access denied.
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrNegotiation: malformed or out-of-order session description.
	ErrNegotiation = errors.New("negotiation error")
	// ErrChannelUnavailable: the signaling channel is disconnected.
	ErrChannelUnavailable = errors.New("signaling channel unavailable")
	// ErrBusy: a conflicting intent while a transition is in flight or a call exists.
	ErrBusy = errors.New("busy")
	// ErrStaleMessage: a message for a session that is no longer current.
	ErrStaleMessage = errors.New("stale message")
	// ErrInvalidState: the intent makes no sense in the current state.
	ErrInvalidState = errors.New("invalid state for intent")
	// ErrTimeout: the peer did not progress the call in time.
	ErrTimeout = errors.New("call timed out")
)

// ErrorKind classifies errors for the presentation surface.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMediaUnavailable
	KindNegotiation
	KindChannelUnavailable
	KindBusy
	KindStaleMessage
	KindInvalidState
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindMediaUnavailable:
		return "MediaUnavailable"
	case KindNegotiation:
		return "NegotiationError"
	case KindChannelUnavailable:
		return "ChannelUnavailable"
	case KindBusy:
		return "BusyError"
	case KindStaleMessage:
		return "StaleMessage"
	case KindInvalidState:
		return "InvalidState"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrMediaUnavailable, KindMediaUnavailable},
	{ErrNegotiation, KindNegotiation},
	{ErrChannelUnavailable, KindChannelUnavailable},
	{ErrBusy, KindBusy},
	{ErrStaleMessage, KindStaleMessage},
	{ErrInvalidState, KindInvalidState},
	{ErrTimeout, KindTimeout},
}

// KindOf maps err onto the error taxonomy.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
