// Command repair backfills stored outcomes and recomputes derived scores.
//
//	repair [-skip-sync] [-reclassify] [-dry-run]
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"wcpickem/ingestion/internal/app"
	"wcpickem/ingestion/internal/config"
	"wcpickem/ingestion/internal/repair"

	"github.com/rs/zerolog/log"
)

func main() {
	var opts repair.Options
	flag.BoolVar(&opts.SkipSync, "skip-sync", false, "do not read the feed first")
	flag.BoolVar(&opts.Reclassify, "reclassify", false, "derive every margin token again and rescore affected matches")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "report planned changes without writing")
	flag.Parse()

	cfg := config.MustLoad()
	app.SetupLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	report, err := a.Repair.Run(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("Repair failed")
		a.Close()
		os.Exit(1)
	}

	log.Info().
		Bool("dry_run", opts.DryRun).
		Int("examined", report.Examined).
		Int("tokens_added", report.TokensAdded).
		Int("reclassified", report.Reclassified).
		Int("winners_filled", report.WinnersFilled).
		Int("updated", report.Updated).
		Int("update_failed", report.UpdateFailed).
		Int("matches_scored", report.MatchesScored).
		Int("late_picks", report.LatePicks).
		Int64("membership_rows", report.MembershipRows).
		Dur("duration", report.Duration).
		Msg("Repair complete")
}
