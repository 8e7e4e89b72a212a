// Package playout consumes the remote audio of an active call and hands it
// to a sink. Muting keeps reading the stream but stops feeding the sink.
package playout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Player struct {
	src    core.RemoteStream
	sink   Sink
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	logger zerolog.Logger

	mu      sync.Mutex
	stats   Stats
	lastSeq uint16
	seen    bool
}

// Start begins reading src on its own goroutine. The player runs until ctx
// ends, Stop is called or the stream fails; the sink is closed on exit.
func Start(ctx context.Context, peer domain.PeerID, src core.RemoteStream, sink Sink) *Player {
	ctx, cancel := context.WithCancel(ctx)
	p := &Player{
		src:    src,
		sink:   sink,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: log.With().
			Str("module", "playout").
			Str("peer", string(peer)).
			Str("stream", src.ID()).
			Logger(),
	}
	p.logger.Info().Msg("starting playout loop")
	go p.loop(ctx)
	return p
}

func (p *Player) loop(ctx context.Context) {
	defer close(p.done)
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("sink close")
		}
		st := p.Stats()
		p.logger.Info().
			Uint64("packets", st.Packets).
			Uint64("lost", st.Lost).
			Msg("playout stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			p.state.Store(int32(StateStopped))
			return
		default:
		}
		pkt, _, err := p.src.ReadRTP()
		if err != nil {
			if p.State() != StateStopped {
				p.logger.Debug().Err(err).Msg("read RTP stopped")
			}
			p.state.Store(int32(StateStopped))
			return
		}
		p.forward(pkt)
	}
}

func (p *Player) forward(pkt *rtp.Packet) {
	p.account(pkt)
	switch p.State() {
	case StateMuted:
		p.mu.Lock()
		p.stats.Muted++
		p.mu.Unlock()
	case StatePlaying:
		if err := p.sink.WriteRTP(pkt); err != nil {
			p.logger.Error().Err(err).Msg("sink write failed, muting")
			p.state.CompareAndSwap(int32(StatePlaying), int32(StateMuted))
		}
	}
}

func (p *Player) account(pkt *rtp.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Packets++
	p.stats.Bytes += uint64(len(pkt.Payload))
	if p.seen {
		// uint16 arithmetic handles wrap-around; reordered packets count as no gap
		if gap := pkt.SequenceNumber - p.lastSeq; gap > 1 && gap < 1<<15 {
			p.stats.Lost += uint64(gap - 1)
		}
	}
	if !p.seen || pkt.SequenceNumber-p.lastSeq < 1<<15 {
		p.lastSeq = pkt.SequenceNumber
	}
	p.seen = true
}

func (p *Player) State() State {
	return State(p.state.Load())
}

func (p *Player) SetMuted(muted bool) {
	if muted {
		p.state.CompareAndSwap(int32(StatePlaying), int32(StateMuted))
		return
	}
	p.state.CompareAndSwap(int32(StateMuted), int32(StatePlaying))
}

// Stop does not wait: a pending read returns once the connection closes.
func (p *Player) Stop() {
	p.state.Store(int32(StateStopped))
	p.cancel()
}

// Done is closed once the loop has exited and the sink is closed.
func (p *Player) Done() <-chan struct{} { return p.done }

func (p *Player) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
