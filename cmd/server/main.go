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
	"github.com/sourcegraph/conc"

	router "github.com/dkeye/Trio/internal/adapters/http"
	"github.com/dkeye/Trio/internal/adapters/presence"
	"github.com/dkeye/Trio/internal/app"
	"github.com/dkeye/Trio/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	reg := app.NewRegistry()
	rooms := app.NewRoomManager()
	rt := app.NewRouter(reg, rooms)

	if cfg.Presence.Enabled() {
		p := presence.NewRedisPresence(cfg.Presence)
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Connect(connectCtx)
		connectCancel()
		if err != nil {
			log.Warn().Err(err).Msg("presence mirror disabled")
			_ = p.Close()
		} else {
			rt.Presence = p
			defer p.Close()
		}
	}

	r := router.SetupRouter(ctx, cfg, rt)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		log.Info().Str("addr", addr).Msg("Trio server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	n := reg.CancelAll()
	log.Info().Int("sessions", n).Msg("sessions canceled")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()
	log.Info().Msg("Server exited gracefully")
}
