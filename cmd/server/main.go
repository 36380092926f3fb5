package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scythe504/turing-backend/internal/ai"
	"github.com/scythe504/turing-backend/internal/config"
	"github.com/scythe504/turing-backend/internal/game"
	"github.com/scythe504/turing-backend/internal/logger"
	"github.com/scythe504/turing-backend/internal/server"
	"github.com/scythe504/turing-backend/internal/store"
)

const releaseVersion = "0.1.0"

func main() {
	config.LoadDotEnv()

	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, releaseVersion, run)
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("[Main] exiting")
	}
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	logger.Setup(cfg.Verbose, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("[Main] closing store")
		}
	}()
	log.Info().Str("store", cfg.Store).Msg("[Main] record store ready")

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	coord := game.NewCoordinator(st, gen, game.Options{
		ConversationDuration: cfg.ConversationDuration,
		GuessWindow:          cfg.GuessWindow,
		FallbackPolicy:       game.FallbackPolicy(cfg.FallbackMode),
		FallbackDelay:        cfg.FallbackDelay,
		FallbackChance:       cfg.FallbackChance,
		HeartbeatTimeout:     cfg.HeartbeatTimeout,
		SweepInterval:        cfg.SweepInterval,
		GenerationTimeout:    cfg.GenerationTimeout,
		MaxMessageLength:     cfg.MaxMessageLength,
		MessageRate:          cfg.MessageRate,
		MessageBurst:         cfg.MessageBurst,
	})

	coordDone := make(chan error, 1)
	go func() { coordDone <- coord.Run(ctx) }()

	srvErr := server.NewServer(cfg, coord, st).ListenAndServe(ctx)

	// The coordinator only stops with ctx.
	stop()
	if err := <-coordDone; err != nil {
		return err
	}
	return srvErr
}

func newGenerator(cfg *config.Config) (game.Generator, error) {
	if cfg.OpenAIKey != "" {
		return ai.NewOpenAIGenerator(ai.OpenAIOptions{
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Persona: cfg.Persona,
		}), nil
	}

	log.Warn().Msg("[Main] no OpenAI key configured, automated partners use scripted replies")
	if cfg.ReplyFile == "" {
		return ai.NewScriptedGenerator(), nil
	}
	gen, err := ai.LoadScriptedGenerator(cfg.ReplyFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", cfg.ReplyFile).Msg("[Main] loaded scripted replies")
	return gen, nil
}
