// Package pipeline is the single entry point that brings the store up to
// date with the feed and settles finished matches.
package pipeline

import (
	"context"
	"time"

	"wcpickem/ingestion/internal/syncer"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Syncer reconciles the feed into the store
type Syncer interface {
	Sync(ctx context.Context) (syncer.Result, error)
}

// Scorer scores finished matches
type Scorer interface {
	ScoreUnscored(ctx context.Context) (int, error)
}

// Summary reports one pipeline run
type Summary struct {
	SyncedAt      time.Time     `json:"syncedAt"`
	MatchesSynced int           `json:"matchesSynced"`
	MatchesScored int           `json:"matchesScored"`
	Sync          syncer.Result `json:"-"`

	// SyncErr is set when the feed could not be read. Scoring still ran
	// against what the store already held.
	SyncErr error `json:"-"`
}

// DefaultRunTimeout bounds one shared run
const DefaultRunTimeout = 5 * time.Minute

// Pipeline runs sync then score
type Pipeline struct {
	syncer     Syncer
	scorer     Scorer
	group      singleflight.Group
	runTimeout time.Duration
	now        func() time.Time
}

// New creates a pipeline
func New(s Syncer, sc Scorer) *Pipeline {
	return &Pipeline{
		syncer:     s,
		scorer:     sc,
		runTimeout: DefaultRunTimeout,
		now:        time.Now,
	}
}

// SyncAndScore syncs the feed and then scores every newly finished match.
// Callers that arrive while a run is in flight share its result. The run
// itself is detached from every caller's cancellation; a caller that gives up
// stops waiting but the run carries on for the others.
func (p *Pipeline) SyncAndScore(ctx context.Context) (Summary, error) {
	ch := p.group.DoChan("sync-and-score", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.runTimeout)
		defer cancel()
		return p.run(runCtx)
	})

	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Debug().Msg("Joined in-flight pipeline run")
		}
		if res.Val == nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), res.Err
	}
}

func (p *Pipeline) run(ctx context.Context) (Summary, error) {
	start := p.now()
	sum := Summary{SyncedAt: start.UTC()}

	res, err := p.syncer.Sync(ctx)
	sum.Sync = res
	sum.MatchesSynced = res.Processed
	if err != nil {
		sum.SyncErr = err
		log.Warn().Err(err).Msg("Sync failed, scoring stored matches only")
	}

	scored, err := p.scorer.ScoreUnscored(ctx)
	sum.MatchesScored = scored
	if err != nil {
		log.Error().Err(err).Msg("Scoring failed")
		return sum, err
	}

	log.Info().
		Int("matches_synced", sum.MatchesSynced).
		Int("matches_scored", sum.MatchesScored).
		Bool("sync_failed", sum.SyncErr != nil).
		Dur("duration", p.now().Sub(start)).
		Msg("Pipeline run complete")

	return sum, nil
}
