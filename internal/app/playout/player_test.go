package playout

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/transport/v3/test"
)

type chanStream struct {
	pkts chan *rtp.Packet
}

func (s *chanStream) ID() string { return "remote-audio" }

func (s *chanStream) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	p, ok := <-s.pkts
	if !ok {
		return nil, nil, io.EOF
	}
	return p, nil, nil
}

type countingSink struct {
	mu     sync.Mutex
	n      int
	closed bool
	fail   bool
}

func (s *countingSink) WriteRTP(*rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("device gone")
	}
	s.n++
	return nil
}

func (s *countingSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *countingSink) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func pkt(seq uint16) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: seq, Timestamp: uint32(seq) * 960, SSRC: 42},
		Payload: []byte{0xf8, 0xff, 0xfe},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPlayerMuteAndStats(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()

	src := &chanStream{pkts: make(chan *rtp.Packet)}
	sink := &countingSink{}
	p := Start(context.Background(), "r1", src, sink)

	src.pkts <- pkt(10)
	src.pkts <- pkt(11)
	waitFor(t, "two packets written", func() bool { return sink.written() == 2 })

	p.SetMuted(true)
	if p.State() != StateMuted {
		t.Fatalf("state = %s, want muted", p.State())
	}
	src.pkts <- pkt(12)
	src.pkts <- pkt(15) // 13 and 14 lost
	waitFor(t, "muted packets counted", func() bool { return p.Stats().Muted == 2 })
	if sink.written() != 2 {
		t.Fatalf("sink got %d packets while muted", sink.written())
	}

	p.SetMuted(false)
	src.pkts <- pkt(16)
	waitFor(t, "write after unmute", func() bool { return sink.written() == 3 })

	st := p.Stats()
	if st.Packets != 5 || st.Lost != 2 || st.Bytes != 15 {
		t.Fatalf("stats = %+v", st)
	}

	close(src.pkts)
	<-p.Done()
	if p.State() != StateStopped || !sink.closed {
		t.Fatalf("after EOF: state %s, sink closed %v", p.State(), sink.closed)
	}
}

func TestPlayerSequenceWrap(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()

	src := &chanStream{pkts: make(chan *rtp.Packet, 4)}
	p := Start(context.Background(), "r1", src, Discard{})
	src.pkts <- pkt(65534)
	src.pkts <- pkt(65535)
	src.pkts <- pkt(1) // 0 lost
	src.pkts <- pkt(0) // late, no gap
	close(src.pkts)
	<-p.Done()
	if st := p.Stats(); st.Packets != 4 || st.Lost != 1 {
		t.Fatalf("stats = %+v, want 4 packets 1 lost", st)
	}
}

func TestPlayerStopIsFinal(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()

	src := &chanStream{pkts: make(chan *rtp.Packet)}
	sink := &countingSink{}
	p := Start(context.Background(), "r1", src, sink)
	p.Stop()
	p.SetMuted(false)
	if p.State() != StateStopped {
		t.Fatalf("unmute revived a stopped player")
	}
	// the pending read returns when the connection goes away
	close(src.pkts)
	<-p.Done()
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
}

func TestPlayerSinkFailureMutes(t *testing.T) {
	defer test.TimeOut(5 * time.Second).Stop()

	src := &chanStream{pkts: make(chan *rtp.Packet)}
	sink := &countingSink{fail: true}
	p := Start(context.Background(), "r1", src, sink)
	src.pkts <- pkt(1)
	waitFor(t, "muted after failure", func() bool { return p.State() == StateMuted })
	close(src.pkts)
	<-p.Done()
}
