package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/config"
	"github.com/driftlab/boardroom/internal/jobs"
	"github.com/driftlab/boardroom/internal/realtime"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.FromEnv(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Connect to database
	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	log.Info().
		Str("database", cfg.DB.Database).
		Str("nats_url", cfg.NATS.URL).
		Int("port", cfg.Server.Port).
		Msg("starting boardroom")

	tokens, err := auth.NewHMACTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token service")
	}

	// Room router
	managerCfg := realtime.DefaultConnectionConfig()
	managerCfg.SendBuffer = cfg.Realtime.SendBuffer
	managerCfg.HeartbeatTimeout = cfg.Realtime.HeartbeatTimeout
	managerCfg.SweepInterval = cfg.Realtime.SweepInterval
	manager := realtime.NewManager(managerCfg, nil)

	// Event stream: jobs publish onto it, the gateway consumer fans out.
	var publisher jobs.Publisher
	var consumer *realtime.EventConsumer
	if cfg.NATS.Enabled {
		pubCfg := jobs.DefaultJetStreamPublisherConfig()
		pubCfg.URL = cfg.NATS.URL
		pubCfg.StreamName = cfg.NATS.Stream
		publisher, err = jobs.NewJetStreamPublisher(pubCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		defer publisher.Close()

		consCfg := realtime.DefaultJetStreamConsumerConfig()
		consCfg.URL = cfg.NATS.URL
		consCfg.StreamName = cfg.NATS.Stream
		consCfg.ConsumerName = cfg.NATS.Consumer
		consumer, err = realtime.NewEventConsumer(manager, consCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event consumer")
		}
		defer consumer.Stop()
	} else {
		log.Warn().Msg("NATS disabled; job progress events will not be delivered")
		publisher = jobs.NoopPublisher{}
	}

	services := setupServices(db, cfg, tokens, manager, publisher)
	server := setupServer(cfg, services)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go services.Manager.Start(ctx)
	go services.Runner.Start(ctx)
	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("boardroom stopped")
}
