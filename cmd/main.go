// Entry point for the enrichment gateway.
//
// Startup order: .env, flags, config, logging, gateway. The process runs
// until SIGINT/SIGTERM and then shuts the listener down gracefully.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mailscope/enrichment-gateway/internal/config"
	"github.com/mailscope/enrichment-gateway/internal/gateway"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config (defaults apply when omitted)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	setupLogging(cfg.Logging)

	gw, err := gateway.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway initialization failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gw.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
