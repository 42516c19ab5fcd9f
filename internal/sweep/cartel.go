package sweep

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// runCartelSweep rebuilds the cartel graph: the global DNA-match pass runs
// once, then every deployer with enough launches gets signals 2–8,
// processed in fixed-size batches so RPC pressure stays bounded while each
// batch itself runs concurrently.
func (r *Runner) runCartelSweep(ctx context.Context) {
	if err := r.cartel.RunDNAMatchGlobal(ctx); err != nil {
		log.Error().Err(err).Msg("cartel sweep: dna match global")
	}

	deployers, err := r.store.DeployersWithAtLeastTokens(r.cfg.CartelMinTokens)
	if err != nil {
		log.Error().Err(err).Msg("cartel sweep: list deployers")
		return
	}

	batchSize := r.cfg.CartelBatchSize
	if batchSize <= 0 {
		batchSize = len(deployers)
	}
	for start := 0; start < len(deployers); start += batchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + batchSize
		if end > len(deployers) {
			end = len(deployers)
		}
		batch := deployers[start:end]

		var wg sync.WaitGroup
		for _, d := range batch {
			d := d
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.cartel.RunDeployerSignals(ctx, d, deployers)
			}()
		}
		wg.Wait()
	}
}
