package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"handoff/signal/internal/admin"
	"handoff/signal/internal/api"
	"handoff/signal/internal/config"
	"handoff/signal/internal/events"
	"handoff/signal/internal/fallback"
	"handoff/signal/internal/health"
	"handoff/signal/internal/iceproxy"
	"handoff/signal/internal/logging"
	"handoff/signal/internal/signaling"
	"handoff/signal/internal/signalws"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	fs := config.NewFlagSet("signal-server")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("parse flags")
	}
	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evts := events.NewStore(0, 0)
	coord := signaling.New(signaling.Options{
		Shards:          cfg.Session.Shards,
		MaxAge:          cfg.Session.MaxAge,
		DisconnectGrace: cfg.Session.DisconnectGrace,
		GraceFrom:       signaling.GraceMode(cfg.Session.GraceFrom),
		Recorder:        evts,
	})
	go coord.RunSweeper(ctx, cfg.Session.SweepInterval)

	offers := fallback.NewStore(cfg.Fallback.TTL)
	go offers.RunPurger(ctx, cfg.Fallback.PurgeInterval)

	ice, err := iceproxy.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ice proxy")
	}

	checker := &health.Checker{Coord: coord, TURN: ice.Provider()}

	h := api.NewHandlers(cfg, signalws.NewServer(cfg, coord), offers, ice)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
	adminSrv := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           admin.NewMux(admin.Deps{Coord: coord, Events: evts, Checker: checker}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := admin.NewGRPC()
	lis, err := net.Listen("tcp", cfg.Admin.GRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Admin.GRPCAddr).Msg("listen grpc")
	}
	go func() {
		if err := grpcSrv.Server.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
		}
	}()
	go grpcSrv.WatchReadiness(ctx, checker, 5*time.Second)

	go func() {
		log.Info().Str("addr", cfg.Admin.Addr).Str("grpc", cfg.Admin.GRPCAddr).Msg("admin listening")
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin server")
		}
	}()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Int("shards", cfg.Session.Shards).
			Str("grace_from", cfg.Session.GraceFrom).Msg("signal server starting")
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received; stopping server...")
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}

	grpcSrv.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	// Hijacked sockets are not tracked by Shutdown; closing the coordinator
	// closes every live one.
	coord.Close()
	_ = adminSrv.Shutdown(shutdownCtx)
	grpcSrv.Shutdown()
	log.Info().Msg("stopped")
}
