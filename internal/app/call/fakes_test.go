package call

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// hub is an in-memory signaling server: it stamps the sender and relays.
type hub struct {
	mu       sync.Mutex
	peers    map[domain.PeerID]*fakeGateway
	held     bool
	pending  []core.Message
	dropped  atomic.Int32
	relayLog []core.Message
}

func newHub() *hub {
	return &hub{peers: make(map[domain.PeerID]*fakeGateway)}
}

func (h *hub) join(id domain.PeerID) *fakeGateway {
	g := &fakeGateway{
		id:     id,
		hub:    h,
		msgs:   make(chan core.Message, 256),
		events: make(chan core.ChannelEvent, 8),
	}
	h.mu.Lock()
	h.peers[id] = g
	h.mu.Unlock()
	return g
}

// hold queues relayed messages until release; used to cross two initiates.
func (h *hub) hold() {
	h.mu.Lock()
	h.held = true
	h.mu.Unlock()
}

func (h *hub) release() {
	h.mu.Lock()
	h.held = false
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, m := range pending {
		h.deliver(m)
	}
}

func (h *hub) relay(m core.Message) {
	h.mu.Lock()
	h.relayLog = append(h.relayLog, m)
	if h.held {
		h.pending = append(h.pending, m)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.deliver(m)
}

func (h *hub) deliver(m core.Message) {
	h.mu.Lock()
	dst := h.peers[m.To]
	h.mu.Unlock()
	if dst == nil {
		h.dropped.Add(1)
		return
	}
	dst.msgs <- m
}

// sent returns the messages of type t that from sent to anyone.
func (h *hub) sent(from domain.PeerID, t core.MessageType) []core.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []core.Message
	for _, m := range h.relayLog {
		if m.From == from && m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type fakeGateway struct {
	hub    *hub
	msgs   chan core.Message
	events chan core.ChannelEvent

	mu   sync.Mutex
	id   domain.PeerID
	self *domain.Identity
}

func (g *fakeGateway) peerID() domain.PeerID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id
}

func (g *fakeGateway) Send(_ context.Context, to domain.PeerID, msg core.Message) error {
	msg.From = g.peerID()
	msg.To = to
	g.hub.relay(msg)
	return nil
}

func (g *fakeGateway) Messages() <-chan core.Message    { return g.msgs }
func (g *fakeGateway) Events() <-chan core.ChannelEvent { return g.events }
func (g *fakeGateway) disconnect()                      { g.events <- core.ChannelDisconnected }

func (g *fakeGateway) LocalIdentity() (domain.Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.self == nil {
		return domain.Identity{}, false
	}
	return *g.self, true
}

// reconnect drops the channel and registers again as self, the way a server
// that forgot our cookie would.
func (g *fakeGateway) reconnect(self domain.Identity) {
	g.hub.mu.Lock()
	g.mu.Lock()
	delete(g.hub.peers, g.id)
	g.id = self.ID
	g.self = &self
	g.hub.peers[self.ID] = g
	g.mu.Unlock()
	g.hub.mu.Unlock()
	g.events <- core.ChannelDisconnected
	g.events <- core.ChannelConnected
}

func (g *fakeGateway) inject(from domain.PeerID, m core.Message) {
	m.From = from
	m.To = g.peerID()
	g.msgs <- m
}

// next waits for the next message delivered to g.
func (g *fakeGateway) next(t *testing.T) core.Message {
	t.Helper()
	select {
	case m := <-g.msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no message arrived", g.peerID())
	}
	return core.Message{}
}

type fakeFactory struct {
	owner domain.PeerID

	// gate, when set, blocks media acquisition until closed
	gate     chan struct{}
	mediaErr error

	liveBindings atomic.Int32
	liveMedia    atomic.Int32

	mu       sync.Mutex
	bindings []*fakeBinding
}

func (f *fakeFactory) NewBinding(peer domain.PeerID) (core.NegotiationBinding, error) {
	b := &fakeBinding{factory: f, peer: peer}
	f.liveBindings.Add(1)
	f.mu.Lock()
	f.bindings = append(f.bindings, b)
	f.mu.Unlock()
	return b, nil
}

func (f *fakeFactory) last() *fakeBinding {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bindings) == 0 {
		return nil
	}
	return f.bindings[len(f.bindings)-1]
}

type fakeBinding struct {
	factory *fakeFactory
	peer    domain.PeerID

	mu         sync.Mutex
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	onCand     func(webrtc.ICECandidateInit)
	onStream   func(core.RemoteStream)
	streamed   bool
	resetOnce  sync.Once
}

func (b *fakeBinding) AcquireLocalMedia(ctx context.Context) (core.MediaHandle, error) {
	if b.factory.gate != nil {
		<-b.factory.gate
	}
	if b.factory.mediaErr != nil {
		return nil, b.factory.mediaErr
	}
	b.factory.liveMedia.Add(1)
	return &fakeMedia{factory: b.factory}, nil
}

func (b *fakeBinding) sdp(kind string) string {
	return fmt.Sprintf("v=0 %s from %s to %s", kind, b.factory.owner, b.peer)
}

func (b *fakeBinding) CreateOffer(ctx context.Context, media core.MediaHandle) (webrtc.SessionDescription, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: b.sdp("offer")}
	b.mu.Lock()
	b.local = &offer
	b.mu.Unlock()
	b.gather()
	return offer, nil
}

func (b *fakeBinding) CreateAnswer(ctx context.Context, offer webrtc.SessionDescription, media core.MediaHandle) (webrtc.SessionDescription, error) {
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: b.sdp("answer")}
	b.mu.Lock()
	b.remote = &offer
	b.local = &answer
	b.mu.Unlock()
	b.gather()
	b.flowing()
	return answer, nil
}

func (b *fakeBinding) ApplyAnswer(ctx context.Context, answer webrtc.SessionDescription) error {
	b.mu.Lock()
	if b.local == nil || b.remote != nil {
		b.mu.Unlock()
		return fmt.Errorf("%w: answer out of order", core.ErrNegotiation)
	}
	b.remote = &answer
	b.mu.Unlock()
	b.flowing()
	return nil
}

func (b *fakeBinding) AddRemoteCandidate(c webrtc.ICECandidateInit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remote == nil {
		return fmt.Errorf("candidate before remote description")
	}
	b.candidates = append(b.candidates, c)
	return nil
}

func (b *fakeBinding) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	b.mu.Lock()
	b.onCand = fn
	b.mu.Unlock()
}

func (b *fakeBinding) OnRemoteStream(fn func(core.RemoteStream)) {
	b.mu.Lock()
	b.onStream = fn
	b.mu.Unlock()
}

func (b *fakeBinding) gather() {
	b.mu.Lock()
	fn := b.onCand
	b.mu.Unlock()
	if fn != nil {
		fn(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"})
	}
}

func (b *fakeBinding) flowing() {
	b.mu.Lock()
	fn := b.onStream
	fire := !b.streamed && fn != nil
	b.streamed = true
	b.mu.Unlock()
	if fire {
		go fn(fakeStream{id: "audio-" + string(b.factory.owner)})
	}
}

func (b *fakeBinding) Reset() {
	b.resetOnce.Do(func() { b.factory.liveBindings.Add(-1) })
}

func (b *fakeBinding) descriptions() (local, remote *webrtc.SessionDescription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.local, b.remote
}

func (b *fakeBinding) remoteCandidates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.candidates)
}

type fakeMedia struct {
	factory *fakeFactory
	once    sync.Once
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal { return nil }
func (m *fakeMedia) Release() {
	m.once.Do(func() { m.factory.liveMedia.Add(-1) })
}

type fakeStream struct{ id string }

func (s fakeStream) ID() string { return s.id }
func (s fakeStream) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, io.EOF
}

type fakePlayback struct {
	mu      sync.Mutex
	muted   bool
	stopped bool
}

func (p *fakePlayback) SetMuted(m bool) {
	p.mu.Lock()
	p.muted = m
	p.mu.Unlock()
}

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *fakePlayback) state() (muted, stopped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted, p.stopped
}

type recorder struct {
	mu       sync.Mutex
	changes  []core.StateChange
	statuses []string
	kinds    []core.ErrorKind
}

func (r *recorder) StateChanged(c core.StateChange) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) StatusMessage(s string) {
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
}

func (r *recorder) ErrorOccurred(k core.ErrorKind, _ error) {
	r.mu.Lock()
	r.kinds = append(r.kinds, k)
	r.mu.Unlock()
}

func (r *recorder) hasKind(k core.ErrorKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.kinds {
		if got == k {
			return true
		}
	}
	return false
}

func (r *recorder) reached(st core.CallState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.changes {
		if c.To == st {
			return true
		}
	}
	return false
}

type terminal struct {
	*Controller
	gw      *fakeGateway
	factory *fakeFactory
	rec     *recorder
}

func startTerminal(t *testing.T, h *hub, id domain.PeerID, role domain.Role, opts Options, hook func(*Controller)) *terminal {
	t.Helper()
	gw := h.join(id)
	f := &fakeFactory{owner: id}
	rec := &recorder{}
	opts.Notifier = rec
	c := NewController(domain.Identity{ID: id, DisplayName: string(id), Role: role}, f, gw, opts)
	if hook != nil {
		hook(c)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.done
	})
	return &terminal{Controller: c, gw: gw, factory: f, rec: rec}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitState(t *testing.T, term *terminal, st core.CallState) Snapshot {
	t.Helper()
	eventually(t, fmt.Sprintf("%s to reach %s", term.gw.peerID(), st), func() bool {
		return term.Snapshot().State == st
	})
	return term.Snapshot()
}

func waitReleased(t *testing.T, term *terminal) {
	t.Helper()
	eventually(t, fmt.Sprintf("%s to release media and bindings", term.gw.peerID()), func() bool {
		return term.factory.liveMedia.Load() == 0 && term.factory.liveBindings.Load() == 0
	})
}
