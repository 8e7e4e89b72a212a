// Package gateway is the terminal side of the signaling channel: a websocket
// client that registers with the server, relays call messages and reconnects
// with exponential backoff.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	// ErrRegistration: the server refused the name/role; retrying will not help.
	ErrRegistration = errors.New("registration refused")
)

type Config struct {
	URL          string
	Name         string
	Role         domain.Role
	QueueSize    int
	PingInterval time.Duration
	// RegisterTimeout bounds the wait for "registered" after each dial.
	RegisterTimeout time.Duration
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

func (c *Config) withDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.RegisterTimeout <= 0 {
		c.RegisterTimeout = 5 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Hooks receive the non-call traffic. They run on the read goroutine.
type Hooks struct {
	OnRegistered  func(domain.Identity)
	OnPeers       func([]domain.Peer)
	OnServerError func(msg string)
}

type Client struct {
	cfg    Config
	hooks  Hooks
	dialer *websocket.Dialer
	logger zerolog.Logger

	msgs   chan core.Message
	events chan core.ChannelEvent

	mu       sync.Mutex
	queue    chan core.Frame
	identity *domain.Identity
	idReady  chan struct{}
}

var _ core.SignalGateway = (*Client)(nil)

func New(cfg Config, hooks Hooks) *Client {
	cfg.withDefaults()
	// the server keys peers on its client_token cookie; keeping the jar keeps
	// the peer id stable across reconnects
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg:   cfg,
		hooks: hooks,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Jar:              jar,
		},
		logger:  log.With().Str("module", "gateway").Str("url", cfg.URL).Logger(),
		msgs:    make(chan core.Message, 64),
		events:  make(chan core.ChannelEvent, 8),
		idReady: make(chan struct{}),
	}
}

func (c *Client) Messages() <-chan core.Message    { return c.msgs }
func (c *Client) Events() <-chan core.ChannelEvent { return c.events }

// Identity waits for the first successful registration.
func (c *Client) Identity(ctx context.Context) (domain.Identity, error) {
	select {
	case <-c.idReady:
		c.mu.Lock()
		defer c.mu.Unlock()
		return *c.identity, nil
	case <-ctx.Done():
		return domain.Identity{}, ctx.Err()
	}
}

func (c *Client) LocalIdentity() (domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

// Send queues msg for to. It never blocks: a full queue is ErrBackpressure
// and no registered connection is core.ErrChannelUnavailable.
func (c *Client) Send(_ context.Context, to domain.PeerID, msg core.Message) error {
	msg.To = to
	frame, err := msg.Marshal()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue == nil {
		return core.ErrChannelUnavailable
	}
	select {
	case c.queue <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// Run keeps a registered connection up until ctx ends or the server refuses
// the registration.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		registered, err := c.session(ctx)
		if errors.Is(err, ErrRegistration) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if registered {
			b.Reset()
		}
		wait := b.NextBackOff()
		c.logger.Warn().Err(err).Dur("retry_in", wait).Msg("signaling connection lost")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// session runs one connection from dial to drop and reports whether it got
// as far as registering.
func (c *Client) session(ctx context.Context) (bool, error) {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = ws.Close()
	}()

	q := make(chan core.Frame, c.cfg.QueueSize)
	reg, err := core.Message{Type: core.TypeRegister, Name: c.cfg.Name, Role: c.cfg.Role}.Marshal()
	if err != nil {
		return false, err
	}
	q <- reg
	writeErr := make(chan error, 1)
	go func() {
		err := c.writePump(connCtx, ws, q)
		cancel()
		writeErr <- err
	}()

	if err := c.awaitRegistered(ws); err != nil {
		return false, err
	}
	c.mu.Lock()
	c.queue = q
	c.mu.Unlock()
	c.emit(ctx, core.ChannelConnected)

	readErr := c.readPump(connCtx, ws)

	c.mu.Lock()
	c.queue = nil
	c.mu.Unlock()
	cancel()
	c.emit(ctx, core.ChannelDisconnected)

	if err := <-writeErr; err != nil && readErr == nil {
		readErr = err
	}
	return true, readErr
}

func (c *Client) awaitRegistered(ws *websocket.Conn) error {
	if err := ws.SetReadDeadline(time.Now().Add(c.cfg.RegisterTimeout)); err != nil {
		return err
	}
	defer func() { _ = ws.SetReadDeadline(time.Time{}) }()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("await registered: %w", err)
		}
		m, err := core.DecodeMessage(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("bad frame before registration")
			continue
		}
		switch m.Type {
		case core.TypeRegistered:
			if m.Status != core.StatusOK || m.Identity == nil {
				return fmt.Errorf("%w: %s", ErrRegistration, m.Message)
			}
			c.setIdentity(*m.Identity)
			return nil
		case core.TypeError:
			return fmt.Errorf("%w: %s", ErrRegistration, m.Message)
		case core.TypePeers:
			c.dispatch(context.Background(), m)
		default:
			c.logger.Debug().Str("type", string(m.Type)).Msg("ignored before registration")
		}
	}
}

func (c *Client) setIdentity(id domain.Identity) {
	c.mu.Lock()
	first := c.identity == nil
	c.identity = &id
	c.mu.Unlock()
	if first {
		close(c.idReady)
	}
	c.logger.Info().Str("id", string(id.ID)).Str("name", id.DisplayName).Str("role", string(id.Role)).Msg("registered")
	if c.hooks.OnRegistered != nil {
		c.hooks.OnRegistered(id)
	}
}

func (c *Client) writePump(ctx context.Context, ws *websocket.Conn, q <-chan core.Frame) error {
	ping, err := core.Message{Type: core.TypePing}.Marshal()
	if err != nil {
		return err
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		var data core.Frame
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			data = ping
		case data = <-q:
		}
		if err := ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return err
		}
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.logger.Error().Err(err).Msg("writePump write error")
			return err
		}
	}
}

func (c *Client) readPump(ctx context.Context, ws *websocket.Conn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		m, err := core.DecodeMessage(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("bad frame")
			continue
		}
		c.dispatch(ctx, m)
	}
}

func (c *Client) dispatch(ctx context.Context, m core.Message) {
	switch {
	case m.Type.Call():
		select {
		case c.msgs <- m:
		case <-ctx.Done():
		}
	case m.Type == core.TypePeers:
		if c.hooks.OnPeers != nil {
			c.hooks.OnPeers(m.Peers)
		}
	case m.Type == core.TypeRegistered:
		if m.Identity != nil {
			c.setIdentity(*m.Identity)
		}
	case m.Type == core.TypeError:
		c.logger.Warn().Str("message", m.Message).Msg("server error")
		if c.hooks.OnServerError != nil {
			c.hooks.OnServerError(m.Message)
		}
	case m.Type == core.TypePong:
	default:
		c.logger.Debug().Str("type", string(m.Type)).Msg("unhandled message")
	}
}

func (c *Client) emit(ctx context.Context, e core.ChannelEvent) {
	select {
	case c.events <- e:
	case <-ctx.Done():
	}
}
