// Package repair backfills stored match outcomes and brings derived data
// back in line: margin tokens, missing winners, scores and membership totals.
package repair

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wcpickem/ingestion/internal/margin"
	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/outcome"
	"wcpickem/ingestion/internal/syncer"

	"github.com/rs/zerolog/log"
)

// MatchStore is the match repository surface used by repairs
type MatchStore interface {
	ListEnded(ctx context.Context) ([]*models.Match, error)
	UpdateOutcome(ctx context.Context, id, status string, winner sql.NullString) (bool, error)
}

// Syncer runs a feed sync pass
type Syncer interface {
	Sync(ctx context.Context) (syncer.Result, error)
}

// Scorer settles unscored matches and late picks
type Scorer interface {
	ScoreUnscored(ctx context.Context) (int, error)
	ScoreLatePicks(ctx context.Context) (int, error)
}

// PointsStore recomputes membership totals
type PointsStore interface {
	RecomputePoints(ctx context.Context) (int64, error)
}

// Options selects repair steps
type Options struct {
	// SkipSync skips the initial feed pass
	SkipSync bool

	// Reclassify strips existing margin tokens and derives them again
	// under the current thresholds. Affected matches are rescored.
	Reclassify bool

	// DryRun reports changes without writing them
	DryRun bool
}

// Report summarises a repair run
type Report struct {
	Synced         int
	SyncErr        error
	Examined       int
	TokensAdded    int
	Reclassified   int
	WinnersFilled  int
	Updated        int
	UpdateFailed   int
	MatchesScored  int
	LatePicks      int
	MembershipRows int64
	Duration       time.Duration
}

// Repairer runs repairs
type Repairer struct {
	matches MatchStore
	syncer  Syncer
	scorer  Scorer
	points  PointsStore
}

// New creates a Repairer
func New(matches MatchStore, s Syncer, scorer Scorer, points PointsStore) *Repairer {
	return &Repairer{matches: matches, syncer: s, scorer: scorer, points: points}
}

// Run executes the selected repair steps in order
func (r *Repairer) Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()
	var rep Report

	if !opts.SkipSync && r.syncer != nil {
		res, err := r.syncer.Sync(ctx)
		rep.Synced = res.Processed
		if err != nil {
			rep.SyncErr = err
			log.Warn().Err(err).Msg("Repair sync pass failed, continuing with stored data")
		}
	}

	ended, err := r.matches.ListEnded(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to list ended matches: %w", err)
	}
	rep.Examined = len(ended)

	for _, m := range ended {
		fix := Plan(m, opts.Reclassify)
		if !fix.Changed() {
			continue
		}

		if fix.TokenAdded {
			rep.TokensAdded++
		}
		if fix.Reclassified {
			rep.Reclassified++
		}
		if fix.WinnerFilled {
			rep.WinnersFilled++
		}

		log.Info().
			Str("match_id", m.ID).
			Str("from", m.Status).
			Str("to", fix.Status).
			Str("winner", fix.Winner.String).
			Bool("dry_run", opts.DryRun).
			Msg("Repairing match outcome")

		if opts.DryRun {
			continue
		}
		if _, err := r.matches.UpdateOutcome(ctx, m.ID, fix.Status, fix.Winner); err != nil {
			rep.UpdateFailed++
			log.Error().Err(err).Str("match_id", m.ID).Msg("Failed to repair match")
			continue
		}
		rep.Updated++
	}

	if opts.DryRun {
		rep.Duration = time.Since(start)
		return rep, nil
	}

	if rep.MatchesScored, err = r.scorer.ScoreUnscored(ctx); err != nil {
		return rep, fmt.Errorf("failed to score matches: %w", err)
	}
	if rep.LatePicks, err = r.scorer.ScoreLatePicks(ctx); err != nil {
		return rep, fmt.Errorf("failed to score late picks: %w", err)
	}
	if rep.MembershipRows, err = r.points.RecomputePoints(ctx); err != nil {
		return rep, fmt.Errorf("failed to recompute membership points: %w", err)
	}

	rep.Duration = time.Since(start)
	log.Info().
		Int("examined", rep.Examined).
		Int("tokens_added", rep.TokensAdded).
		Int("reclassified", rep.Reclassified).
		Int("winners_filled", rep.WinnersFilled).
		Int("updated", rep.Updated).
		Int("update_failed", rep.UpdateFailed).
		Int("matches_scored", rep.MatchesScored).
		Int("late_picks", rep.LatePicks).
		Dur("duration", rep.Duration).
		Msg("Repair complete")

	return rep, nil
}

// Fix is the planned outcome of one match
type Fix struct {
	Status       string
	Winner       sql.NullString
	TokenAdded   bool
	Reclassified bool
	WinnerFilled bool
}

// Changed reports whether the plan alters the match
func (f Fix) Changed() bool {
	return f.TokenAdded || f.Reclassified || f.WinnerFilled
}

// Plan decides how an ended match should be stored
func Plan(m *models.Match, reclassify bool) Fix {
	fix := Fix{Status: m.Status, Winner: m.Winner}

	if reclassify && margin.HasToken(m.Status) {
		if next := margin.Annotate(margin.Strip(m.Status)); next != m.Status {
			fix.Status = next
			fix.Reclassified = true
		}
	} else if !margin.HasToken(m.Status) {
		if next := margin.Annotate(m.Status); next != m.Status {
			fix.Status = next
			fix.TokenAdded = true
		}
	}

	if !m.Winner.Valid || m.Winner.String == "" {
		if w := outcome.WinnerFromStatus(fix.Status); w != "" {
			fix.Winner = models.NullString(w)
			fix.WinnerFilled = true
		}
	}

	return fix
}
