package app

import (
	"errors"
	"testing"

	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
)

type nopConn struct{ name string }

func (*nopConn) TrySend(core.Frame) error { return nil }
func (*nopConn) Close()                   {}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	a, b := &nopConn{"a"}, &nopConn{"b"}
	r.Bind("p1", a, nil)
	r.Bind("p2", b, nil)

	if _, err := r.Register("ghost", "r101", "Room 101", domain.RoleGuest); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("unbound register: %v", err)
	}
	if _, err := r.Register("p1", "r101", "Room 101", domain.RoleGuest); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register("p2", "r101", "Room 101", domain.RoleGuest); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate name: %v", err)
	}
	// Same slug under the other role is a different directory entry.
	if _, err := r.Register("p2", "r101", "Desk 101", domain.RoleReceptionist); err != nil {
		t.Fatalf("other role: %v", err)
	}

	if id, ok := r.Holder(domain.RoleGuest, "r101"); !ok || id != "p1" {
		t.Fatalf("holder = %q, %v", id, ok)
	}
	if got := r.Registered(); len(got) != 2 || got[0].Identity.ID != "p1" {
		t.Fatalf("registered = %+v", got)
	}

	// Renaming frees the old name.
	if _, err := r.Register("p1", "r102", "Room 102", domain.RoleGuest); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, ok := r.Holder(domain.RoleGuest, "r101"); ok {
		t.Fatalf("old name still held")
	}
}

func TestRegistryRebind(t *testing.T) {
	r := NewRegistry()
	old, fresh := &nopConn{"old"}, &nopConn{"new"}
	cancelled := false
	r.Bind("p1", old, func() { cancelled = true })
	r.Register("p1", "r101", "Room 101", domain.RoleGuest)

	r.Bind("p1", fresh, nil)
	if !cancelled {
		t.Fatalf("old connection not cancelled")
	}
	if _, _, ok := r.Identity("p1"); ok {
		t.Fatalf("new connection inherited registration")
	}
	if _, _, registered := r.Unbind("p1", old); registered {
		t.Fatalf("stale unbind reported a registration")
	}
	if sig, ok := r.Signal("p1"); ok || sig != nil {
		t.Fatalf("unregistered connection must not receive relays")
	}
	if _, _, ok := r.Unbind("p1", fresh); ok {
		t.Fatalf("fresh connection was never registered")
	}
	if r.Cancel("p1") {
		t.Fatalf("cancel after unbind")
	}
}

func TestSimplePolicy(t *testing.T) {
	p := SimplePolicy{}
	if p.OnBackPressure("p", core.TypeCandidate) != DropFrame || p.OnBackPressure("p", core.TypePeers) != DropFrame {
		t.Fatalf("candidates and presence should be dropped")
	}
	if p.OnBackPressure("p", core.TypeOffer) != KickMember {
		t.Fatalf("offer should kick")
	}
}
