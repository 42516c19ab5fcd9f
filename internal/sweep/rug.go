package sweep

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rs/zerolog/log"

	"github.com/lineage-agent/forensics/internal/market"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/store"
)

// runRugSweep re-checks every recent, still-unrugged launch's current
// liquidity across all known pairs. A pool that's drained below the rug
// threshold gets a token_rugged event and a fire-and-forget SOL-flow trace
// of the deployer's exit.
func (r *Runner) runRugSweep(ctx context.Context) {
	candidates, err := r.store.RugSweepCandidates(r.cfg.RugMinRecordedLiquidityUSD, r.cfg.RugLookback, r.cfg.RugCandidateLimit)
	if err != nil {
		log.Error().Err(err).Msg("rug sweep: list candidates")
		return
	}

	sem := semaphore.NewWeighted(r.cfg.RugFanout)
	var wg sync.WaitGroup
	for _, c := range candidates {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem.Acquire(ctx, 1) != nil {
				return
			}
			defer sem.Release(1)
			r.checkRugCandidate(ctx, c)
		}()
	}
	wg.Wait()
}

func (r *Runner) checkRugCandidate(ctx context.Context, c store.RugSweepCandidate) {
	pairs, err := r.market.PairsForMint(ctx, c.Mint)
	if err != nil {
		log.Debug().Err(err).Str("mint", c.Mint).Msg("rug sweep: fetch pairs")
		return
	}
	var currentLiq float64
	if best := market.BestLiquidityPair(pairs); best != nil {
		currentLiq = best.Liquidity.USD
	}
	if currentLiq >= r.cfg.RugLiquidityThresholdUSD {
		return
	}

	now := time.Now().UTC()
	err = r.store.RecordEvent(models.TokenEvent{
		EventType: models.EventTokenRugged,
		Mint:      c.Mint,
		Deployer:  c.Deployer,
		LiqUSD:    currentLiq,
		CreatedAt: c.CreatedAt,
		RuggedAt:  &now,
	})
	if err != nil {
		log.Error().Err(err).Str("mint", c.Mint).Msg("rug sweep: record token_rugged")
		return
	}
	log.Info().Str("mint", c.Mint).Str("deployer", c.Deployer).Float64("liq_usd", currentLiq).Msg("rug sweep: rug detected")

	if r.tracer == nil {
		return
	}
	go func() {
		traceCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := r.tracer.Trace(traceCtx, c.Mint, c.Deployer); err != nil {
			log.Debug().Err(err).Str("mint", c.Mint).Msg("rug sweep: sol flow trace")
		}
	}()
}
