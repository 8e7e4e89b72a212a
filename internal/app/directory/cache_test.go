package directory

import (
	"errors"
	"testing"

	"github.com/dkeye/FrontDesk/internal/domain"
)

func seeded() *Cache {
	c := NewCache()
	c.Update([]domain.Peer{
		{ID: "sock-2", Name: "room-102", DisplayName: "Room 102", Role: domain.RoleGuest, Available: true},
		{ID: "", Name: "room-101", DisplayName: "Room 101", Role: domain.RoleGuest},
		{ID: "sock-9", Name: "lobby", DisplayName: "Lobby desk", Role: domain.RoleReceptionist, Available: true},
		{ID: "sock-7", Name: "spa", DisplayName: "Desk", Role: domain.RoleReceptionist, Available: false},
		{ID: "", Name: "night", DisplayName: "Desk", Role: domain.RoleReceptionist},
	})
	return c
}

func TestResolve(t *testing.T) {
	c := seeded()
	cases := []struct {
		query   string
		want    domain.PeerID
		wantErr error
	}{
		{"sock-9", "sock-9", nil},
		{"LOBBY", "sock-9", nil},
		{"room 102", "sock-2", nil},
		{"  room-102 ", "sock-2", nil},
		{"room-101", "", ErrOffline},
		{"Desk", "sock-7", nil},
		{"penthouse", "", ErrUnknownPeer},
		{"", "", ErrUnknownPeer},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			p, err := c.Resolve(tc.query)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if p.ID != tc.want {
				t.Fatalf("got %s, want %s", p.ID, tc.want)
			}
		})
	}
}

func TestResolveAmbiguous(t *testing.T) {
	c := NewCache()
	c.Update([]domain.Peer{
		{ID: "a", Name: "east", DisplayName: "Desk", Role: domain.RoleReceptionist},
		{ID: "b", Name: "west", DisplayName: "Desk", Role: domain.RoleReceptionist},
	})
	if _, err := c.Resolve("desk"); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("err = %v, want ErrAmbiguous", err)
	}
}

func TestCallableAndOrdering(t *testing.T) {
	c := seeded()
	var pushed []domain.Peer
	c.OnChange(func(p []domain.Peer) { pushed = p })

	got := c.Callable(domain.RoleGuest)
	if len(got) != 3 {
		t.Fatalf("guest can call %d peers, want 3", len(got))
	}
	for _, p := range got {
		if p.Role != domain.RoleReceptionist {
			t.Fatalf("guest offered %s", p.Role)
		}
	}
	if names := c.ListPeers(); names[0].Name != "lobby" || names[len(names)-1].Name != "spa" {
		t.Fatalf("not sorted: %+v", names)
	}

	c.Update(nil)
	if pushed == nil || len(pushed) != 0 {
		t.Fatalf("OnChange got %+v, want empty snapshot", pushed)
	}
	if len(c.ListPeers()) != 0 {
		t.Fatalf("snapshot not replaced")
	}
}
