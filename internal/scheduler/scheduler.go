package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wcpickem/ingestion/internal/metrics"
	"wcpickem/ingestion/internal/pipeline"
	"wcpickem/ingestion/internal/repair"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner runs the sync-and-score pipeline
type Runner interface {
	SyncAndScore(ctx context.Context) (pipeline.Summary, error)
}

// Repairer runs the nightly backfill
type Repairer interface {
	Run(ctx context.Context, opts repair.Options) (repair.Report, error)
}

// Config controls the schedule
type Config struct {
	SyncInterval time.Duration
	RepairCron   string // empty disables the nightly repair
}

// Scheduler manages background tasks:
// - sync and score on a fixed interval
// - nightly repair on a cron schedule
type Scheduler struct {
	cfg      Config
	runner   Runner
	repairer Repairer
	cron     *cron.Cron
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg Config, runner Runner, repairer Repairer) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		repairer: repairer,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if s.cfg.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", s.cfg.SyncInterval)
	}

	if s.cfg.RepairCron != "" && s.repairer != nil {
		if _, err := s.cron.AddFunc(s.cfg.RepairCron, func() {
			s.runRepair(ctx)
		}); err != nil {
			return fmt.Errorf("failed to schedule nightly repair: %w", err)
		}

		s.cron.Start()
		log.Info().
			Str("schedule", s.cfg.RepairCron).
			Msg("Nightly repair scheduled")
	}

	s.ticker = time.NewTicker(s.cfg.SyncInterval)
	log.Info().
		Dur("interval", s.cfg.SyncInterval).
		Msg("Sync polling started")

	s.wg.Add(1)
	go s.poll(ctx)

	return nil
}

// Stop stops the scheduler and waits for the polling loop to exit
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		log.Info().Msg("Stopping scheduler...")

		<-s.cron.Stop().Done()

		if s.ticker != nil {
			s.ticker.Stop()
		}

		close(s.stopChan)
		s.wg.Wait()
		log.Info().Msg("Scheduler stopped")
	})
}

func (s *Scheduler) poll(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping sync polling")
			return
		case <-s.stopChan:
			log.Info().Msg("Stop signal received, stopping sync polling")
			return
		case <-s.ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	if _, err := s.runner.SyncAndScore(ctx); err != nil {
		metrics.RecordTrigger("scheduler", "failure")
		log.Error().Err(err).Msg("Scheduled sync-and-score failed")
		return
	}
	metrics.RecordTrigger("scheduler", "success")
}

func (s *Scheduler) runRepair(ctx context.Context) {
	log.Info().Msg("Running nightly repair...")

	rep, err := s.repairer.Run(ctx, repair.Options{})
	if err != nil {
		metrics.RecordError("scheduler", "repair")
		log.Error().Err(err).Msg("Nightly repair failed")
		return
	}

	log.Info().
		Int("updated", rep.Updated).
		Int("matches_scored", rep.MatchesScored).
		Int("late_picks", rep.LatePicks).
		Msg("Nightly repair complete")
}
