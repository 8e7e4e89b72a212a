package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrontDesk/internal/adapters/console"
	"github.com/dkeye/FrontDesk/internal/adapters/gateway"
	"github.com/dkeye/FrontDesk/internal/adapters/mdns"
	"github.com/dkeye/FrontDesk/internal/adapters/rtc"
	"github.com/dkeye/FrontDesk/internal/app/call"
	"github.com/dkeye/FrontDesk/internal/app/directory"
	"github.com/dkeye/FrontDesk/internal/app/playout"
	"github.com/dkeye/FrontDesk/internal/config"
	"github.com/dkeye/FrontDesk/internal/core"
	"github.com/dkeye/FrontDesk/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// stdout belongs to the console; logs go to stderr.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, v, err := config.LoadTerminal(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(config.ParseLevel(cfg.LogLevel))
	config.WatchLogLevel(v, zerolog.SetGlobalLevel)

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("terminal stopped")
	}
	log.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.Terminal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Reset {
		if err := config.ClearState(cfg.StateFile); err != nil {
			return err
		}
		log.Info().Str("file", cfg.StateFile).Msg("registration reset")
	}
	cached, err := config.LoadState(cfg.StateFile)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring registration cache")
	}
	name, role, err := cfg.Registration(cached)
	if err != nil {
		return err
	}

	url := cfg.ServerURL
	if url == "" {
		dctx, dcancel := context.WithTimeout(ctx, cfg.DiscoverTimeout)
		url, err = mdns.Discover(dctx, nil)
		dcancel()
		if err != nil {
			return err
		}
	}

	source, err := mediaSource(cfg.Media)
	if err != nil {
		return err
	}
	factory, err := rtc.NewFactory(source, rtc.FactoryConfig{ICEServers: cfg.ICEServers})
	if err != nil {
		return err
	}

	dir := directory.NewCache()
	con := console.New(os.Stdin, os.Stdout, dir)

	gw := gateway.New(gateway.Config{URL: url, Name: name, Role: role}, gateway.Hooks{
		OnRegistered: func(id domain.Identity) {
			if err := config.SaveState(cfg.StateFile, config.State{Name: name, Role: string(id.Role)}); err != nil {
				log.Warn().Err(err).Msg("save registration")
			}
		},
		OnPeers:       dir.Update,
		OnServerError: func(msg string) { con.StatusMessage("server: " + msg) },
	})

	// The gateway outlives the controller so a goodbye can still go out.
	gwCtx, gwCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer gwCancel()
	gwErr := make(chan error, 1)
	go func() {
		err := gw.Run(gwCtx)
		gwErr <- err
		// A refused registration is final; take the terminal down with it.
		cancel()
	}()

	self, err := gw.Identity(ctx)
	if err != nil {
		select {
		case gerr := <-gwErr:
			if errors.Is(gerr, gateway.ErrRegistration) {
				return gerr
			}
		default:
		}
		return err
	}

	ctl := call.NewController(self, factory, gw, call.Options{
		PendingTimeout:     cfg.PendingTimeout,
		NegotiationTimeout: cfg.NegotiationTimeout,
		CandidateBuffer:    cfg.CandidateBuffer,
		Notifier:           con,
		Playback: func(ctx context.Context, peer domain.PeerID, stream core.RemoteStream) call.Playback {
			return playout.Start(ctx, peer, stream, playout.Discard{})
		},
	})
	ctlDone := make(chan struct{})
	go func() {
		defer close(ctlDone)
		_ = ctl.Run(ctx)
	}()

	err = con.Run(ctx, ctl)
	cancel()
	<-ctlDone
	if errors.Is(err, context.Canceled) {
		select {
		case gerr := <-gwErr:
			if errors.Is(gerr, gateway.ErrRegistration) {
				return gerr
			}
		default:
		}
	}
	return err
}

func mediaSource(kind string) (rtc.Source, error) {
	if kind == config.MediaSilence {
		return rtc.Silence{}, nil
	}
	mic, err := rtc.NewMicrophone()
	if err != nil {
		return nil, err
	}
	return mic, nil
}
