package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dkeye/FrontDesk/internal/app/call"
	"github.com/dkeye/FrontDesk/internal/app/directory"
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
)

type fakeController struct {
	calls []string
	muted bool
	snap  call.Snapshot
}

func (f *fakeController) Identity() domain.Identity {
	return domain.Identity{ID: "g1", DisplayName: "Room 101", Role: domain.RoleGuest}
}
func (f *fakeController) Snapshot() call.Snapshot { return f.snap }
func (f *fakeController) Initiate(_ context.Context, peer domain.PeerID, role domain.Role) error {
	f.calls = append(f.calls, fmt.Sprintf("initiate %s %s", peer, role))
	return nil
}
func (f *fakeController) Accept(context.Context) error {
	f.calls = append(f.calls, "accept")
	return fmt.Errorf("accept: %w: no call", core.ErrInvalidState)
}
func (f *fakeController) Reject(context.Context) error {
	f.calls = append(f.calls, "reject")
	return nil
}
func (f *fakeController) Cancel(context.Context) error {
	f.calls = append(f.calls, "cancel")
	return nil
}
func (f *fakeController) HangUp(context.Context) error {
	f.calls = append(f.calls, "hangup")
	return nil
}
func (f *fakeController) ToggleMute(context.Context) (bool, error) {
	f.muted = !f.muted
	f.calls = append(f.calls, "mute")
	return f.muted, nil
}

func newDir() *directory.Cache {
	d := directory.NewCache()
	d.Update([]domain.Peer{
		{ID: "r1", Name: "lobby", DisplayName: "Lobby", Role: domain.RoleReceptionist, Available: true},
		{ID: "", Name: "spa", DisplayName: "Spa", Role: domain.RoleReceptionist},
		{ID: "g2", Name: "room-102", DisplayName: "Room 102", Role: domain.RoleGuest, Available: true},
	})
	return d
}

func TestRunDrivesController(t *testing.T) {
	in := strings.NewReader("peers\ncall Lobby\n\naccept\nMUTE\nstatus\nbogus\ncall\nquit\nhangup\n")
	var out bytes.Buffer
	ctl := &fakeController{snap: call.Snapshot{State: core.StateActive, Peer: "r1", Role: core.Initiator, Muted: true}}

	con := New(in, &out, newDir())
	if err := con.Run(context.Background(), ctl); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"initiate r1 receptionist", "accept", "mute"}
	if strings.Join(ctl.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", ctl.calls, want)
	}
	text := out.String()
	for _, s := range []string{
		"Lobby",
		"offline",
		"! accept: invalid state for intent: no call",
		"remote audio muted",
		"Active with r1",
		`unknown command "bogus"`,
		"usage: call <name>",
	} {
		if !strings.Contains(text, s) {
			t.Errorf("output lacks %q:\n%s", s, text)
		}
	}
	if strings.Contains(text, "Room 102") {
		t.Errorf("guest was offered another guest:\n%s", text)
	}
}

func TestCallUnknownPeer(t *testing.T) {
	var out bytes.Buffer
	ctl := &fakeController{}
	con := New(strings.NewReader(""), &out, newDir())
	_, err := con.Exec(context.Background(), ctl, "call spa")
	if !errors.Is(err, directory.ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
	if len(ctl.calls) != 0 {
		t.Fatalf("controller called: %v", ctl.calls)
	}
}

func TestNotifications(t *testing.T) {
	var out bytes.Buffer
	con := New(strings.NewReader(""), &out, newDir())
	con.StateChanged(core.StateChange{From: core.StateInboundPending, To: core.StateNegotiating, Phase: core.PhaseDescriptionPending, Peer: "g1", Role: core.Recipient})
	con.StatusMessage("In Call")
	con.ErrorOccurred(core.KindTimeout, core.ErrTimeout)

	want := "[call] InboundPending -> Negotiating (DescriptionPending) peer=g1 as recipient\n" +
		"* In Call\n" +
		"! Timeout: call timed out\n"
	if out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}
}
