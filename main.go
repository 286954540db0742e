package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccdb/ccdb/config"
	"github.com/ccdb/ccdb/log"
	"github.com/ccdb/ccdb/server"
)

// shutdownGrace bounds how long live runs get to mark themselves for
// resume before the process exits
const shutdownGrace = 15 * time.Second

func main() {
	cfg := config.Get()

	if cfg.DiscordBotToken == "" {
		log.Fatal().Msg("DISCORD_BOT_TOKEN is required")
	}
	if cfg.DiscordChannelID == "" {
		log.Fatal().Msg("DISCORD_CHANNEL_ID is required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("data directory create failed")
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("server init failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		received := <-sig
		log.Info().Str("signal", received.String()).Msg("signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}
