// Command syncnow runs one sync-and-score pass and exits. It exits non-zero
// when the feed could not be read or scoring failed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wcpickem/ingestion/internal/app"
	"wcpickem/ingestion/internal/config"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.MustLoad()
	app.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	sum, err := a.Pipeline.SyncAndScore(ctx)
	a.Close()
	if err != nil {
		log.Error().Err(err).Msg("Scoring failed")
		os.Exit(1)
	}
	if sum.SyncErr != nil {
		log.Error().
			Err(sum.SyncErr).
			Int("scored", sum.MatchesScored).
			Msg("Feed unavailable")
		os.Exit(1)
	}

	log.Info().
		Int("listed", sum.Sync.Listed).
		Int("synced", sum.MatchesSynced).
		Int("scored", sum.MatchesScored).
		Int("write_failed", sum.Sync.WriteFailed).
		Msg("Sync and score complete")
}
