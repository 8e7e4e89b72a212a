// Package console is a line-oriented presentation surface for a terminal:
// commands in, call state and status lines out.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dkeye/FrontDesk/internal/app/call"
	"github.com/dkeye/FrontDesk/internal/app/directory"
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/rs/zerolog/log"
)

var errUsage = errors.New("usage")

// Controller is the slice of call.Controller the console drives.
type Controller interface {
	Identity() domain.Identity
	Snapshot() call.Snapshot
	Initiate(ctx context.Context, peer domain.PeerID, role domain.Role) error
	Accept(ctx context.Context) error
	Reject(ctx context.Context) error
	Cancel(ctx context.Context) error
	HangUp(ctx context.Context) error
	ToggleMute(ctx context.Context) (bool, error)
}

type Console struct {
	in  io.Reader
	dir *directory.Cache

	mu  sync.Mutex
	out io.Writer
}

var _ core.Notifier = (*Console)(nil)

func New(in io.Reader, out io.Writer, dir *directory.Cache) *Console {
	return &Console{in: in, out: out, dir: dir}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) StateChanged(ch core.StateChange) {
	line := fmt.Sprintf("[call] %s -> %s", ch.From, ch.To)
	if ch.Phase != core.PhaseNone {
		line += " (" + ch.Phase.String() + ")"
	}
	if ch.Peer != "" {
		line += fmt.Sprintf(" peer=%s as %s", ch.Peer, ch.Role)
	}
	c.printf("%s", line)
}

func (c *Console) StatusMessage(text string) {
	c.printf("* %s", text)
}

func (c *Console) ErrorOccurred(kind core.ErrorKind, err error) {
	c.printf("! %s: %v", kind, err)
}

// PrintPeers shows a directory snapshot.
func (c *Console) PrintPeers(peers []domain.Peer) {
	if len(peers) == 0 {
		c.printf("(nobody to call)")
		return
	}
	for _, p := range peers {
		state := "offline"
		switch {
		case p.ID != "" && p.Available:
			state = "available"
		case p.ID != "":
			state = "busy"
		}
		c.printf("  %-20s %-12s %-9s %s", p.DisplayName, p.Role, state, p.Name)
	}
}

// Run reads commands until quit, end of input or ctx ends.
func (c *Console) Run(ctx context.Context, ctl Controller) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			log.Error().Err(err).Str("module", "console").Msg("read input")
		}
	}()

	self := ctl.Identity()
	c.printf("FrontDesk terminal %q (%s). Type 'help'.", self.DisplayName, self.Role)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.Exec(ctx, ctl, line)
			if err != nil {
				c.printf("! %v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, ctl Controller, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		c.printf("commands: peers | call <name> | accept | reject | cancel | hangup | mute | status | quit")
	case "peers", "ls":
		c.PrintPeers(c.dir.Callable(ctl.Identity().Role))
	case "call":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: call <name>", errUsage)
		}
		p, err := c.dir.Resolve(strings.Join(args, " "))
		if err != nil {
			return false, err
		}
		return false, ctl.Initiate(ctx, p.ID, p.Role)
	case "accept", "answer":
		return false, ctl.Accept(ctx)
	case "reject", "decline":
		return false, ctl.Reject(ctx)
	case "cancel":
		return false, ctl.Cancel(ctx)
	case "hangup", "end":
		return false, ctl.HangUp(ctx)
	case "mute":
		muted, err := ctl.ToggleMute(ctx)
		if err != nil {
			return false, err
		}
		c.printf("remote audio %s", map[bool]string{true: "muted", false: "on"}[muted])
	case "status":
		s := ctl.Snapshot()
		if s.State == core.StateIdle {
			c.printf("idle")
			break
		}
		c.printf("%s with %s (%s, phase %s, muted %v)", s.State, s.Peer, s.Role, s.Phase, s.Muted)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
	return false, nil
}
