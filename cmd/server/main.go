package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thereceipt/print-gateway/internal/api"
	"github.com/thereceipt/print-gateway/internal/config"
	"github.com/thereceipt/print-gateway/internal/printer"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "print-gateway").Str("version", Version).Logger()

	logger := log.With().Str("component", "main").Logger()

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}

	printers := cfg.Map()
	if len(printers) == 0 {
		logger.Fatal().Str("path", configPath).Msg("config contains no printers")
	}
	for id, p := range printers {
		logger.Info().Str("printer", id).Str("target", printer.Target(p.Backend)).Msg("configured printer")
	}

	store := config.NewStore(printers)

	dialer := printer.NewDialer()
	manager := printer.NewManager(dialer, log.With().Str("component", "pool").Logger())
	health := printer.NewHealthCache(
		printer.NewProber(dialer),
		printer.DefaultHealthTTL,
		log.With().Str("component", "health").Logger(),
	)

	sweeper := printer.NewSweeper(manager, health, printer.DefaultSweepInterval,
		log.With().Str("component", "sweeper").Logger())
	sweeper.Start()
	defer sweeper.Stop()

	server := api.NewServer(store, manager, health, configPath, Version,
		log.With().Str("component", "api").Logger())

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8080"
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("starting API server")
		serverErr <- server.Run(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Fatal().Err(err).Msg("server error")
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}
}
