// Package scheduler runs harvest cycles on a fixed interval, gating each
// cycle on remaining eBay Browse quota so enrichment never burns through
// the daily allowance mid-harvest.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hobbyfetch/cardharvest/internal/logger"
	"github.com/hobbyfetch/cardharvest/internal/models"
)

// Harvester runs one source end to end.
type Harvester interface {
	Source() models.Source
	Run(ctx context.Context) (int, error)
}

// QuotaChecker reports how many Browse API calls remain in the current window.
type QuotaChecker interface {
	BrowseRemaining(ctx context.Context) (int, error)
}

// MarkerStore records when each source's harvest last started.
type MarkerStore interface {
	SetLastUpdate(ctx context.Context, source models.Source, t time.Time) error
}

// Notifier reports completed cycles to an external channel.
type Notifier interface {
	SendCycleSummary(started time.Time, results []HarvestResult) error
}

// HarvestResult captures one source's outcome within a cycle.
type HarvestResult struct {
	Source    models.Source
	Persisted int
	Err       error
}

// Scheduler runs the configured harvesters sequentially, forever.
type Scheduler struct {
	quota      QuotaChecker
	markers    MarkerStore
	harvesters []Harvester
	notifier   Notifier
	interval   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New builds a scheduler. notifier may be nil when reporting is disabled.
func New(quota QuotaChecker, markers MarkerStore, harvesters []Harvester, notifier Notifier, interval time.Duration) *Scheduler {
	return &Scheduler{
		quota:      quota,
		markers:    markers,
		harvesters: harvesters,
		notifier:   notifier,
		interval:   interval,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Run executes cycles until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.runCycle(ctx)

		logger.Info("next cycle in %s", s.interval)
		s.sleep(ctx, s.interval)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// runCycle checks quota, then runs every harvester in order. One source
// failing does not stop its siblings; the result slice carries the errors.
func (s *Scheduler) runCycle(ctx context.Context) {
	cycleID := uuid.New().String()[:8]
	started := s.now()
	logger.Info("cycle %s: starting", cycleID)

	remaining, err := s.quota.BrowseRemaining(ctx)
	if err != nil {
		logger.Warn("cycle %s: quota check failed, proceeding anyway: %v", cycleID, err)
	} else if remaining <= 0 {
		logger.Info("cycle %s: browse quota exhausted, skipping", cycleID)
		return
	} else {
		logger.Info("cycle %s: %d browse calls remaining", cycleID, remaining)
	}

	results := make([]HarvestResult, 0, len(s.harvesters))
	for _, h := range s.harvesters {
		if ctx.Err() != nil {
			return
		}
		source := h.Source()

		if err := s.markers.SetLastUpdate(ctx, source, s.now()); err != nil {
			logger.Warn("cycle %s: %s: recording start marker failed: %v", cycleID, source, err)
		}

		persisted, err := h.Run(ctx)
		if err != nil {
			logger.Error("cycle %s: %s: harvest failed after %d records: %v", cycleID, source, persisted, err)
		} else {
			logger.Info("cycle %s: %s: %d records persisted", cycleID, source, persisted)
		}
		results = append(results, HarvestResult{Source: source, Persisted: persisted, Err: err})
	}

	if s.notifier != nil {
		if err := s.notifier.SendCycleSummary(started, results); err != nil {
			logger.Warn("cycle %s: sending summary failed: %v", cycleID, err)
		}
	}
	logger.Info("cycle %s: finished in %s", cycleID, s.now().Sub(started).Round(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
