package evaluator

import (
	"context"
	"sync"
	"time"

	"scouter/pkg/config"
	"scouter/pkg/database"
	"scouter/pkg/logger"
	"scouter/pkg/metrics"
	"scouter/profile"
)

// Scheduler runs the cron-driven claim loop: on every tick it reclaims
// profiles stuck in processing past the stale timeout, fetches the next
// batch of overdue profiles, and fans them out to a bounded pool of K
// worker goroutines pulling from a shared task channel, the same
// channel-of-work-plus-fixed-worker-count shape the teacher's Monte Carlo
// engine uses for its iteration workers.
type Scheduler struct {
	db           database.DB
	dispatcher   Dispatcher
	metrics      *metrics.Metrics
	concurrency  int
	tickInterval time.Duration
	staleAfter   time.Duration
	claimBatch   int
}

// NewScheduler builds a Scheduler from cfg, defaulting any unset knob to
// the values spec names: K=8, 1 minute ticks, 15 minute stale reclaim.
func NewScheduler(db database.DB, dispatcher Dispatcher, m *metrics.Metrics, cfg config.SchedulerConfig) *Scheduler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}
	stale := cfg.StaleReclaimAfter
	if stale <= 0 {
		stale = 15 * time.Minute
	}
	batch := cfg.ClaimBatchSize
	if batch <= 0 {
		batch = concurrency * 4
	}
	return &Scheduler{
		db: db, dispatcher: dispatcher, metrics: m,
		concurrency: concurrency, tickInterval: tick, staleAfter: stale, claimBatch: batch,
	}
}

// Run blocks, ticking until ctx is canceled. Each tick's in-flight
// evaluations are allowed to finish their current profile before the next
// tick starts, honoring the cooperative-cancellation contract: Run checks
// ctx between ticks and between profiles within a tick, never mid-kernel.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx); err != nil && ctx.Err() == nil {
			logger.Error("evaluator: scheduler tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	now := time.Now()
	reclaimed, err := reclaimStale(ctx, s.db, s.staleAfter, now)
	if err != nil {
		return err
	}
	for i := int64(0); i < reclaimed && s.metrics != nil; i++ {
		s.metrics.RecordStaleReclaim()
	}

	profiles, err := fetchEligible(ctx, s.db, now, s.claimBatch)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}

	work := make(chan *profile.Profile, len(profiles))
	for _, p := range profiles {
		work <- p
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < s.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				if ctx.Err() != nil {
					return
				}
				s.evaluateOne(ctx, p)
			}
		}()
	}
	wg.Wait()
	return nil
}

// evaluateOne claims p and, only on a successful single-flight claim,
// runs Evaluate against it. A lost claim (another worker or another
// scheduler instance got there first) is not an error.
func (s *Scheduler) evaluateOne(ctx context.Context, p *profile.Profile) {
	now := time.Now()
	claimed, err := claimProfile(ctx, s.db, p.UID, now)
	if err != nil {
		logger.Error("evaluator: claim failed", "uid", p.UID, "error", err)
		return
	}
	if !claimed {
		return
	}
	p.Claim(now)

	if err := Evaluate(ctx, s.db, s.dispatcher, s.metrics, p); err != nil {
		logger.Error("evaluator: evaluation failed", "uid", p.UID, "entity_id", p.EntityID, "error", err)
	}
}
