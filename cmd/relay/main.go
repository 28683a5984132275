package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"

	router "github.com/dkeye/blogrelay/internal/adapters/http"
	"github.com/dkeye/blogrelay/internal/app"
	"github.com/dkeye/blogrelay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	relay := app.NewRelay(app.DefaultRoutes(), cfg.InboxSize)
	r := router.SetupRouter(ctx, cfg, relay)
	srv := router.NewServer(fmt.Sprintf(":%d", cfg.Port), r)

	sup := suture.New("blogrelay", suture.Spec{
		EventHook: logSupervisorEvent,
		Timeout:   10 * time.Second,
	})
	sup.Add(relay)
	sup.Add(srv)

	log.Info().Int("port", cfg.Port).Msg("blog relay starting")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("supervisor stopped")
		os.Exit(1)
	}
	log.Info().Msg("blog relay exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func logSupervisorEvent(e suture.Event) {
	log.Warn().Str("module", "supervisor").Fields(e.Map()).Msg(e.String())
}
