package rtc

import (
	"fmt"
	"time"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type FactoryConfig struct {
	// ICEServers are STUN/TURN urls. Empty means host candidates only (LAN).
	ICEServers []string
	// DisconnectedTimeout and FailedTimeout tune ICE; zero keeps pion's defaults.
	DisconnectedTimeout time.Duration
	FailedTimeout       time.Duration
	// IncludeLoopback offers 127.0.0.1 candidates; used when both ends share a host.
	IncludeLoopback bool
}

// Factory hands out one Connection per call session. All connections share
// the media engine populated by the source's codecs.
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
	source Source
}

var _ core.BindingFactory = (*Factory)(nil)

func NewFactory(source Source, cfg FactoryConfig) (*Factory, error) {
	me := &webrtc.MediaEngine{}
	if err := source.Populate(me); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory()}
	if cfg.DisconnectedTimeout > 0 || cfg.FailedTimeout > 0 {
		disc, failed := cfg.DisconnectedTimeout, cfg.FailedTimeout
		if disc == 0 {
			disc = 5 * time.Second
		}
		if failed == 0 {
			failed = 25 * time.Second
		}
		se.SetICETimeouts(disc, failed, 2*time.Second)
	}
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
		se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)
	var servers []webrtc.ICEServer
	if len(cfg.ICEServers) > 0 {
		servers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	return &Factory{
		api:    api,
		config: webrtc.Configuration{ICEServers: servers},
		source: source,
	}, nil
}

func (f *Factory) NewBinding(peer domain.PeerID) (core.NegotiationBinding, error) {
	return f.NewConnection(peer)
}

func (f *Factory) NewConnection(peer domain.PeerID) (*Connection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("%w: new peer connection: %v", core.ErrNegotiation, err)
	}
	logger := log.With().Str("module", "webrtc").Str("peer", string(peer)).Logger()
	return newConnection(pc, peer, f.source, logger), nil
}
