// Package sweep runs the long-lived background loops that keep the event
// store current between on-demand analyses: re-checking recent launches for
// rugs, rebuilding the cartel graph, dispatching subscriber alerts, and
// trimming the database. Each loop is a cron.Cron entry so the schedules
// read the way the original service describes them ("every 15 min",
// "hourly") rather than as raw durations.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/lineage-agent/forensics/internal/cartel"
	"github.com/lineage-agent/forensics/internal/market"
	"github.com/lineage-agent/forensics/internal/solflow"
	"github.com/lineage-agent/forensics/internal/store"
)

// Config tunes every sweep's cadence and thresholds.
type Config struct {
	RugSweepSchedule           string
	RugMinRecordedLiquidityUSD float64
	RugLookback                time.Duration
	RugLiquidityThresholdUSD   float64
	RugCandidateLimit          int
	RugFanout                  int64

	CartelSweepSchedule string
	CartelMinTokens     int
	CartelBatchSize     int

	AlertSweepSchedule string
	AlertLookback      time.Duration
	AlertEventLimit    int

	MaintenanceSweepSchedule string
	SolFlowMaxAge            time.Duration
	EventMaxAge              time.Duration
	VacuumInterval           time.Duration
}

// DefaultConfig matches spec.md §4.8's documented cadences and thresholds.
func DefaultConfig() Config {
	return Config{
		RugSweepSchedule:           "*/15 * * * *",
		RugMinRecordedLiquidityUSD: 500,
		RugLookback:                48 * time.Hour,
		RugLiquidityThresholdUSD:   100,
		RugCandidateLimit:          200,
		RugFanout:                  3,

		CartelSweepSchedule: "0 * * * *",
		CartelMinTokens:     2,
		CartelBatchSize:     10,

		AlertSweepSchedule: "*/5 * * * *",
		AlertLookback:      6 * time.Minute,
		AlertEventLimit:    50,

		MaintenanceSweepSchedule: "0 */6 * * *",
		SolFlowMaxAge:            90 * 24 * time.Hour,
		EventMaxAge:              180 * 24 * time.Hour,
		VacuumInterval:           24 * time.Hour,
	}
}

// Runner owns the cron schedule and every dependency the four sweeps touch.
type Runner struct {
	store    *store.Store
	market   *market.Client
	tracer   *solflow.Tracer
	cartel   *cartel.Builder
	notifier Notifier
	cfg      Config

	cron *cron.Cron

	vacuumMu   sync.Mutex
	lastVacuum time.Time
}

// New builds a Runner. notifier may be a NoopNotifier if no alert transport
// is configured; sweeps still run, they just log instead of dispatching.
func New(st *store.Store, mkt *market.Client, tracer *solflow.Tracer, cb *cartel.Builder, notifier Notifier, cfg Config) *Runner {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Runner{store: st, market: mkt, tracer: tracer, cartel: cb, notifier: notifier, cfg: cfg}
}

// Start schedules all four sweeps and begins running them in the
// background. It returns once scheduling succeeds; the sweeps themselves
// keep running until ctx is cancelled, at which point Start's caller should
// not need to do anything further — a goroutine here drains the cron
// scheduler on cancellation.
func (r *Runner) Start(ctx context.Context) error {
	r.cron = cron.New()

	jobs := []struct {
		schedule string
		name     string
		run      func(context.Context)
	}{
		{r.cfg.RugSweepSchedule, "rug_sweep", r.runRugSweep},
		{r.cfg.CartelSweepSchedule, "cartel_sweep", r.runCartelSweep},
		{r.cfg.AlertSweepSchedule, "alert_sweep", r.runAlertSweep},
		{r.cfg.MaintenanceSweepSchedule, "db_maintenance_sweep", r.runMaintenanceSweep},
	}
	for _, j := range jobs {
		j := j
		if _, err := r.cron.AddFunc(j.schedule, func() { r.runGuarded(ctx, j.name, j.run) }); err != nil {
			return err
		}
	}

	r.cron.Start()
	go func() {
		<-ctx.Done()
		stopCtx := r.cron.Stop()
		<-stopCtx.Done()
	}()
	return nil
}

// runGuarded wraps a sweep iteration so a panic or slow failure never kills
// the scheduler; it logs and moves on to the next tick, matching the
// original's "wrap every iteration, never terminate the loop" rule.
func (r *Runner) runGuarded(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("sweep", name).Interface("panic", rec).Msg("sweep iteration panicked")
		}
	}()
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	fn(ctx)
	log.Debug().Str("sweep", name).Dur("elapsed", time.Since(start)).Msg("sweep iteration complete")
}
