// Package syncer reconciles the CricAPI feed into the local match store.
//
// A pass fetches the series match list once, skips every match that is
// already resolved in the store, fetches detail only for matches that are
// likely to have new information, and upserts the resolved outcome.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wcpickem/ingestion/internal/metrics"
	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/outcome"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Feed is the read-only match data provider
type Feed interface {
	FetchSeriesMatches(ctx context.Context) ([]models.FeedMatch, error)
	FetchMatchInfo(ctx context.Context, matchID string) (*models.FeedMatch, error)
}

// MatchStore is the subset of the match repository the engine writes to
type MatchStore interface {
	ResolvedIDs(ctx context.Context) (map[string]struct{}, error)
	SettledIDs(ctx context.Context) (map[string]struct{}, error)
	Upsert(ctx context.Context, match *models.Match) error
}

// Config controls the detail-fetch policy
type Config struct {
	SeriesName string

	// A scheduled match older than this is detail-fetched even when the
	// feed still reports it as not started
	Staleness time.Duration

	// Maximum concurrent detail fetches
	Concurrency int
}

// Result summarises a sync pass
type Result struct {
	Listed        int
	Resolved      int // skipped: already authoritative in the store
	Settled       int // skipped: scored without a winner, feed shows none
	Filtered      int // skipped: U19 fixtures
	DetailFetched int
	DetailFailed  int
	Processed     int // upserted
	WriteFailed   int
	Duration      time.Duration
}

// Engine runs sync passes
type Engine struct {
	feed  Feed
	store MatchStore
	cfg   Config
	now   func() time.Time
}

// NewEngine creates a sync engine
func NewEngine(feed Feed, store MatchStore, cfg Config) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Engine{
		feed:  feed,
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Sync performs one pass. It returns an error only when the match list
// cannot be fetched or the resolved set cannot be loaded; per-match failures
// are logged and counted.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	start := e.now()
	var res Result

	feedMatches, err := e.feed.FetchSeriesMatches(ctx)
	if err != nil {
		metrics.RecordSync("matches", "failure", e.now().Sub(start).Seconds())
		metrics.RecordError("syncer", "feed_unavailable")
		return res, fmt.Errorf("failed to fetch match list: %w", err)
	}
	res.Listed = len(feedMatches)

	resolved, err := e.store.ResolvedIDs(ctx)
	if err != nil {
		metrics.RecordSync("matches", "failure", e.now().Sub(start).Seconds())
		return res, fmt.Errorf("failed to load resolved matches: %w", err)
	}

	settled, err := e.store.SettledIDs(ctx)
	if err != nil {
		metrics.RecordSync("matches", "failure", e.now().Sub(start).Seconds())
		return res, fmt.Errorf("failed to load settled matches: %w", err)
	}

	var candidates []*models.FeedMatch
	for i := range feedMatches {
		fm := &feedMatches[i]
		if fm.ID == "" {
			continue
		}
		if _, ok := resolved[fm.ID]; ok {
			res.Resolved++
			continue
		}
		if fm.IsYouth() {
			res.Filtered++
			continue
		}
		// Abandoned and no-result fixtures would otherwise be detail-fetched
		// on every pass. A winner appearing in the list reopens them.
		if _, ok := settled[fm.ID]; ok && !outcome.Resolve(fm, nil).HasWinner() {
			res.Settled++
			continue
		}
		candidates = append(candidates, fm)
	}

	details := e.fetchDetails(ctx, candidates, &res)

	for _, fm := range candidates {
		match := e.buildMatch(fm, details[fm.ID])

		if err := e.store.Upsert(ctx, match); err != nil {
			res.WriteFailed++
			metrics.RecordError("syncer", "upsert")
			log.Error().Err(err).Str("match_id", fm.ID).Msg("Failed to upsert match")
			continue
		}
		res.Processed++

		log.Debug().
			Str("match_id", match.ID).
			Str("status", match.Status).
			Bool("ended", match.Ended).
			Str("winner", match.WinnerOrEmpty()).
			Msg("Match synced")
	}

	res.Duration = e.now().Sub(start)
	metrics.RecordMatchesSynced(res.Processed)
	metrics.RecordSync("matches", "success", res.Duration.Seconds())

	log.Info().
		Int("listed", res.Listed).
		Int("resolved_skipped", res.Resolved).
		Int("settled_skipped", res.Settled).
		Int("filtered", res.Filtered).
		Int("detail_fetched", res.DetailFetched).
		Int("detail_failed", res.DetailFailed).
		Int("processed", res.Processed).
		Int("write_failed", res.WriteFailed).
		Dur("duration", res.Duration).
		Msg("Match sync complete")

	return res, nil
}

// NeedsDetail decides whether a match is worth a metered detail fetch
func (e *Engine) NeedsDetail(fm *models.FeedMatch) bool {
	if fm.Ended() || fm.Started() {
		return true
	}
	scheduled := fm.ScheduledAt()
	if scheduled.IsZero() {
		return false
	}
	return scheduled.Before(e.now().Add(-e.cfg.Staleness))
}

// fetchDetails fetches detail records concurrently. A failed fetch leaves
// the match without detail for this pass.
func (e *Engine) fetchDetails(ctx context.Context, candidates []*models.FeedMatch, res *Result) map[string]*models.FeedMatch {
	var (
		mu      sync.Mutex
		details = make(map[string]*models.FeedMatch)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, fm := range candidates {
		if !e.NeedsDetail(fm) {
			continue
		}
		fm := fm
		g.Go(func() error {
			d, err := e.feed.FetchMatchInfo(gctx, fm.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.DetailFailed++
				metrics.RecordDetailFetch("failure")
				log.Warn().Err(err).Str("match_id", fm.ID).Msg("Detail fetch failed, using list data")
				return nil
			}
			res.DetailFetched++
			metrics.RecordDetailFetch("success")
			details[fm.ID] = d
			return nil
		})
	}

	_ = g.Wait()
	return details
}

// buildMatch combines coarse attributes with the resolved outcome
func (e *Engine) buildMatch(fm, detail *models.FeedMatch) *models.Match {
	match := fm.ToMatch(e.cfg.SeriesName)
	if detail != nil {
		if snap := detail.ScoreSnapshot(); snap != nil {
			match.Score = snap
		}
	}

	out := outcome.Resolve(fm, detail)
	match.Started = out.Started
	match.Ended = out.Ended
	match.Status = out.Status

	// Only ever write a winner we derived; the store keeps a prior one
	if out.HasWinner() {
		match.Winner = models.NullString(out.Winner)
	} else if w := outcome.WinnerFromStatus(match.Status); w != "" {
		match.Winner = models.NullString(w)
	}

	return match
}
