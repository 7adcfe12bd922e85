package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/service"
	"github.com/ivspro/tariff-import/internal/utils"
)

// AutoRunWorker triggers one import run per day, at the configured
// hour, for every active provider flagged for automatic processing.
type AutoRunWorker struct {
	providerRepo *repository.ProviderRepository
	runner       *service.RunService
	hour         int
	interval     time.Duration
	lastRunDay   string
}

// NewAutoRunWorker constructs an AutoRunWorker. interval is how often
// the worker checks the clock, not how often imports run.
func NewAutoRunWorker(
	providerRepo *repository.ProviderRepository,
	runner *service.RunService,
	hour int,
	interval time.Duration,
) *AutoRunWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AutoRunWorker{
		providerRepo: providerRepo,
		runner:       runner,
		hour:         hour,
		interval:     interval,
	}
}

// Start begins the daily trigger loop and listens for context cancellation.
func (w *AutoRunWorker) Start(ctx context.Context) {
	log.Info().Int("hour", w.hour).Dur("check_interval", w.interval).Msg("Starting auto-run worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx, time.Now())
		case <-ctx.Done():
			log.Info().Msg("Auto-run worker stopped")
			return
		}
	}
}

// tick fires the daily batch once the local clock enters the target
// hour, at most once per calendar day.
func (w *AutoRunWorker) tick(ctx context.Context, now time.Time) {
	if w.shouldFire(now) {
		w.runAll(ctx)
	}
}

func (w *AutoRunWorker) shouldFire(now time.Time) bool {
	if now.Hour() != w.hour {
		return false
	}
	day := now.Format("2006-01-02")
	if w.lastRunDay == day {
		return false
	}
	w.lastRunDay = day
	return true
}

func (w *AutoRunWorker) runAll(ctx context.Context) {
	log.Info().Msg("Starting daily tariff import batch")

	providers, err := w.providerRepo.GetAutoRunCandidates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get auto-run providers")
		return
	}
	if len(providers) == 0 {
		log.Debug().Msg("No providers flagged for automatic processing")
		return
	}

	for _, p := range providers {
		if err := w.runner.ProcessProvider(ctx, p.ID); err != nil {
			switch {
			case errors.Is(err, utils.ErrRunInProgress):
				log.Warn().Str("provider", p.Name).Msg("Provider already running, skipped")
			case errors.Is(err, utils.ErrProviderNotReady), errors.Is(err, utils.ErrProviderInactive):
				log.Debug().Str("provider", p.Name).Msg("Provider not runnable, skipped")
			default:
				log.Error().Err(err).Str("provider", p.Name).Msg("Provider run failed")
			}
		}
		if ctx.Err() != nil {
			return
		}
	}

	log.Info().Int("providers", len(providers)).Msg("Daily tariff import batch completed")
}
