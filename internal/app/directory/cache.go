// Package directory keeps the terminal's view of who can be called, as last
// pushed by the signaling server.
package directory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrOffline     = errors.New("peer offline")
	ErrAmbiguous   = errors.New("ambiguous peer name")
)

type Cache struct {
	mu       sync.RWMutex
	peers    []domain.Peer
	onChange func([]domain.Peer)
}

func NewCache() *Cache { return &Cache{} }

// OnChange registers fn to run after each Update with the new snapshot.
func (c *Cache) OnChange(fn func([]domain.Peer)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Update replaces the snapshot. Entries are kept sorted by name.
func (c *Cache) Update(peers []domain.Peer) {
	snap := make([]domain.Peer, len(peers))
	copy(snap, peers)
	sort.SliceStable(snap, func(i, j int) bool { return snap[i].Name < snap[j].Name })

	c.mu.Lock()
	c.peers = snap
	fn := c.onChange
	c.mu.Unlock()

	log.Debug().Str("module", "directory").Int("peers", len(snap)).Msg("directory updated")
	if fn != nil {
		fn(c.ListPeers())
	}
}

func (c *Cache) ListPeers() []domain.Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Peer, len(c.peers))
	copy(out, c.peers)
	return out
}

// Callable lists the peers a terminal of role self may call.
func (c *Cache) Callable(self domain.Role) []domain.Peer {
	want := self.Counterpart()
	var out []domain.Peer
	for _, p := range c.ListPeers() {
		if p.Role == want {
			out = append(out, p)
		}
	}
	return out
}

// Resolve finds the peer a user means by query: a peer id, a slug or a
// display name, compared case-insensitively. The peer must be online.
func (c *Cache) Resolve(query string) (domain.Peer, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return domain.Peer{}, fmt.Errorf("%w: empty name", ErrUnknownPeer)
	}
	var matches []domain.Peer
	for _, p := range c.ListPeers() {
		switch {
		case p.ID != "" && string(p.ID) == q:
			return checkOnline(p)
		case strings.EqualFold(p.Name, q), strings.EqualFold(p.DisplayName, q):
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Peer{}, fmt.Errorf("%w: %q", ErrUnknownPeer, q)
	case 1:
		return checkOnline(matches[0])
	}
	online := matches[:0:0]
	for _, p := range matches {
		if p.ID != "" {
			online = append(online, p)
		}
	}
	if len(online) == 1 {
		return online[0], nil
	}
	return domain.Peer{}, fmt.Errorf("%w: %q matches %d peers", ErrAmbiguous, q, len(matches))
}

func checkOnline(p domain.Peer) (domain.Peer, error) {
	if p.ID == "" {
		return domain.Peer{}, fmt.Errorf("%w: %s", ErrOffline, p.Name)
	}
	return p, nil
}
