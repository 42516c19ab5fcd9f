package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// runMaintenanceSweep purges stale cache/event/flow rows, forces a WAL
// checkpoint every run, and runs an incremental vacuum only once per
// VacuumInterval (the sweep itself ticks more often than that).
func (r *Runner) runMaintenanceSweep(ctx context.Context) {
	if n, err := r.store.PurgeExpiredCache(); err != nil {
		log.Error().Err(err).Msg("db maintenance: purge cache")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("db maintenance: purged expired cache")
	}

	if n, err := r.store.PurgeOldSolFlows(r.cfg.SolFlowMaxAge); err != nil {
		log.Error().Err(err).Msg("db maintenance: purge sol flows")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("db maintenance: purged old sol flows")
	}

	if n, err := r.store.PurgeOldEvents(r.cfg.EventMaxAge); err != nil {
		log.Error().Err(err).Msg("db maintenance: purge events")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("db maintenance: purged old events")
	}

	if err := r.store.Checkpoint(); err != nil {
		log.Error().Err(err).Msg("db maintenance: checkpoint")
	}

	r.vacuumMu.Lock()
	due := time.Since(r.lastVacuum) >= r.cfg.VacuumInterval
	if due {
		r.lastVacuum = time.Now().UTC()
	}
	r.vacuumMu.Unlock()
	if !due {
		return
	}
	if err := r.store.IncrementalVacuum(); err != nil {
		log.Error().Err(err).Msg("db maintenance: incremental vacuum")
	}
}
