// Package mdns advertises the signaling server on the LAN and lets
// terminals find it without configuration.
package mdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const (
	Service = "_frontdesk._tcp"
	Domain  = "local."

	txtPath = "path="
)

var ErrNotFound = errors.New("no signaling server found on the LAN")

// Advertiser keeps a service registration alive until Shutdown.
type Advertiser interface {
	Shutdown()
}

// Advertise announces the signaling endpoint at port and path.
func Advertise(instance string, port int, path string) (Advertiser, error) {
	txt := []string{txtPath + path, "version=1"}
	srv, err := zeroconf.Register(instance, Service, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	log.Info().Str("module", "mdns").Str("instance", instance).Int("port", port).Msg("advertising")
	return srv, nil
}

// Browser is the resolver side of zeroconf; tests substitute it.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Discover returns the websocket URL of the first server that answers
// before ctx ends.
func Discover(ctx context.Context, b Browser) (string, error) {
	if b == nil {
		r, err := zeroconf.NewResolver(nil)
		if err != nil {
			return "", fmt.Errorf("mdns resolver: %w", err)
		}
		b = r
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The resolver owns the channel once Browse is called; never close it here.
	entries := make(chan *zeroconf.ServiceEntry, 4)
	if err := b.Browse(ctx, Service, Domain, entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ErrNotFound
		case e, ok := <-entries:
			if !ok {
				return "", ErrNotFound
			}
			if url, ok := entryURL(e); ok {
				log.Info().Str("module", "mdns").Str("instance", e.Instance).Str("url", url).Msg("discovered server")
				return url, nil
			}
		}
	}
}

func entryURL(e *zeroconf.ServiceEntry) (string, bool) {
	if e == nil || e.Port == 0 {
		return "", false
	}
	var host string
	switch {
	case len(e.AddrIPv4) > 0:
		host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		host = e.AddrIPv6[0].String()
	default:
		return "", false
	}
	path := "/api/ws/signal"
	for _, t := range e.Text {
		if p, ok := strings.CutPrefix(t, txtPath); ok && p != "" {
			path = p
		}
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(e.Port)) + path, true
}
