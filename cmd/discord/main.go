// cmd/discord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"github.com/smallwoj/join-sound-johnson/internal/blobstore"
	"github.com/smallwoj/join-sound-johnson/internal/config"
	"github.com/smallwoj/join-sound-johnson/internal/discord"
	"github.com/smallwoj/join-sound-johnson/internal/logging"
	"github.com/smallwoj/join-sound-johnson/internal/playback"
	"github.com/smallwoj/join-sound-johnson/internal/registry"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg)
	logger.Info().Msg("starting join-sound-johnson bot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Misconfiguration is fatal here; per-request failures never are.
	pool, err := registry.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database is unreachable")
	}
	defer pool.Close()

	reg := registry.New(pool, logger)
	if err := reg.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare schema")
	}

	store, err := blobstore.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to open blob store")
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create Discord session")
	}

	voice := discord.NewVoiceManager(dg, logger)
	orch := playback.New(reg, store, voice, logger)
	bot := discord.NewBot(dg, orch, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info().Stringer("signal", s).Msg("received signal, shutting down...")
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("Discord bot error")
		}
		cancel()
	case <-ctx.Done():
	}

	logger.Info().Msg("Discord bot exited cleanly")
}
