package app

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("peer not connected")
	ErrNameTaken    = errors.New("name already registered")
)

type entry struct {
	Identity   domain.Identity
	Name       string
	Registered bool
	Signal     core.SignalConnection
	Cancel     context.CancelFunc
}

type nameKey struct {
	role domain.Role
	name string
}

// Registry tracks live signaling connections by peer id and which
// directory name each one registered as.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.PeerID]*entry
	names   map[nameKey]domain.PeerID
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.PeerID]*entry),
		names:   make(map[nameKey]domain.PeerID),
	}
}

// Bind attaches a fresh connection to id. A previous connection under the
// same id (a reconnect that beat the old socket's teardown) is cancelled.
func (r *Registry) Bind(id domain.PeerID, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	old := r.entries[id]
	r.entries[id] = &entry{Identity: domain.Identity{ID: id}, Signal: sig, Cancel: cancel}
	if old != nil && old.Registered {
		delete(r.names, nameKey{old.Identity.Role, old.Name})
	}
	r.mu.Unlock()

	if old != nil && old.Cancel != nil {
		old.Cancel()
		log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("replaced connection")
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("bound signal")
}

// Register claims name for id under role. The name must be free or already
// held by id.
func (r *Registry) Register(id domain.PeerID, name, displayName string, role domain.Role) (domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.Identity{}, ErrNotConnected
	}
	key := nameKey{role, name}
	if holder, taken := r.names[key]; taken && holder != id {
		return domain.Identity{}, ErrNameTaken
	}
	if e.Registered {
		delete(r.names, nameKey{e.Identity.Role, e.Name})
	}
	e.Identity = domain.Identity{ID: id, DisplayName: displayName, Role: role}
	e.Name = name
	e.Registered = true
	r.names[key] = id
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Str("name", name).Str("role", string(role)).Msg("registered")
	return e.Identity, nil
}

// Identity returns the registered identity and directory name of id.
func (r *Registry) Identity(id domain.PeerID) (domain.Identity, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || !e.Registered {
		return domain.Identity{}, "", false
	}
	return e.Identity, e.Name, true
}

// Signal returns the connection of a registered peer.
func (r *Registry) Signal(id domain.PeerID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || !e.Registered {
		return nil, false
	}
	return e.Signal, true
}

func (r *Registry) Holder(role domain.Role, name string) (domain.PeerID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[nameKey{role, name}]
	return id, ok
}

// Unbind removes id if sig is still its current connection and reports
// whether it was registered.
func (r *Registry) Unbind(id domain.PeerID, sig core.SignalConnection) (domain.Identity, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Signal != sig {
		return domain.Identity{}, "", false
	}
	delete(r.entries, id)
	if e.Registered {
		delete(r.names, nameKey{e.Identity.Role, e.Name})
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("unbind")
	return e.Identity, e.Name, e.Registered
}

type Snapshot struct {
	Identity domain.Identity
	Name     string
	Signal   core.SignalConnection
}

// Registered lists registered peers ordered by id.
func (r *Registry) Registered() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Registered {
			out = append(out, Snapshot{Identity: e.Identity, Name: e.Name, Signal: e.Signal})
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.ID < out[j].Identity.ID })
	return out
}

func (r *Registry) Cancel(id domain.PeerID) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("canceled session")
	return true
}
