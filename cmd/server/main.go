package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/FrontDesk/internal/adapters/http"
	"github.com/dkeye/FrontDesk/internal/adapters/mdns"
	"github.com/dkeye/FrontDesk/internal/app"
	"github.com/dkeye/FrontDesk/internal/app/orch"
	"github.com/dkeye/FrontDesk/internal/config"
	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/dkeye/FrontDesk/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config loading can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, v, err := config.LoadServer(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(config.ParseLevel(cfg.LogLevel))
	config.WatchLogLevel(v, zerolog.SetGlobalLevel)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	if err := db.Seed(ctx, seedRooms(cfg.Rooms), seedDesks(cfg.Receptionists)); err != nil {
		log.Fatal().Err(err).Msg("failed to seed directory")
	}

	o := &orch.Orchestrator{
		Registry:  app.NewRegistry(),
		Directory: db,
		Policy:    app.SimplePolicy{},
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("FrontDesk server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	if cfg.MDNS {
		adv, err := mdns.Advertise(cfg.Instance, cfg.Port, "/api/ws/signal")
		if err != nil {
			log.Warn().Err(err).Msg("mDNS disabled")
		} else {
			defer adv.Shutdown()
		}
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func seedRooms(in []config.RoomSeed) []domain.Room {
	out := make([]domain.Room, 0, len(in))
	for _, r := range in {
		out = append(out, domain.Room{Slug: r.Slug, Name: r.Name, Floor: r.Floor, Fingerprint: r.Fingerprint})
	}
	return out
}

func seedDesks(in []config.ReceptionistSeed) []domain.Receptionist {
	out := make([]domain.Receptionist, 0, len(in))
	for _, r := range in {
		out = append(out, domain.Receptionist{Slug: r.Slug, Name: r.Name})
	}
	return out
}
