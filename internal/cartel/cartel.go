// Package cartel builds the coordination graph between deployer wallets:
// eight independent signals feed weighted edges into the event store, and
// Louvain community detection partitions a deployer's ego-network into
// operator clusters on demand.
package cartel

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
	"github.com/lineage-agent/forensics/internal/store"
)

// Config tunes every signal's threshold and strength curve, matching the
// constants the cartel sweep has used historically.
type Config struct {
	DNAMatchStrength float64

	SolTransferMinLamports int64
	SolTransferDivisorSOL  float64

	TimingSyncWindow        time.Duration
	TimingSyncMinStrength   float64

	PhashClusterMaxDistance int
	PhashClusterMinStrength float64

	CrossHoldingMinTokens int
	CrossHoldingStrength  float64

	FundingLinkLookbackSigs int
	FundingLinkWindow       time.Duration
	FundingLinkMinLamports  int64

	SharedLPBaseStrength   float64
	SharedLPPerOverlap     float64
	SniperRingBaseStrength float64
	SniperRingPerShared    float64
	SniperRingLookback     int

	SignalConcurrency int64
}

// DefaultConfig matches spec.md §4.7's documented constants.
func DefaultConfig() Config {
	return Config{
		DNAMatchStrength: 0.95,

		SolTransferMinLamports: 100_000_000, // 0.1 SOL
		SolTransferDivisorSOL:  10,

		TimingSyncWindow:      30 * time.Minute,
		TimingSyncMinStrength: 0.1,

		PhashClusterMaxDistance: 8,
		PhashClusterMinStrength: 0.5,

		CrossHoldingMinTokens: 3,
		CrossHoldingStrength:  0.70,

		FundingLinkLookbackSigs: 200,
		FundingLinkWindow:       72 * time.Hour,
		FundingLinkMinLamports:  50_000_000, // 0.05 SOL

		SharedLPBaseStrength:   0.65,
		SharedLPPerOverlap:     0.1,
		SniperRingBaseStrength: 0.3,
		SniperRingPerShared:    0.15,
		SniperRingLookback:     25,

		SignalConcurrency: 4,
	}
}

// Builder runs the eight coordination signals and community detection.
type Builder struct {
	rpc   *rpcclient.Client
	store *store.Store
	cfg   Config
}

// New builds a Builder.
func New(rpc *rpcclient.Client, st *store.Store, cfg Config) *Builder {
	if cfg.SignalConcurrency <= 0 {
		cfg.SignalConcurrency = DefaultConfig().SignalConcurrency
	}
	return &Builder{rpc: rpc, store: st, cfg: cfg}
}

// RunDNAMatchGlobal emits the dna_match signal once globally: every pair of
// wallets sharing an operator fingerprint gets an edge at DNAMatchStrength.
func (b *Builder) RunDNAMatchGlobal(ctx context.Context) error {
	mappings, err := b.store.AllOperatorMappings()
	if err != nil {
		return err
	}
	groups := make(map[string][]string)
	for _, m := range mappings {
		groups[m.Fingerprint] = append(groups[m.Fingerprint], m.Wallet)
	}
	for fingerprint, wallets := range groups {
		for i := 0; i < len(wallets); i++ {
			for j := i + 1; j < len(wallets); j++ {
				_ = b.store.UpsertCartelEdge(models.CartelEdge{
					WalletA:        wallets[i],
					WalletB:        wallets[j],
					SignalType:     models.SignalDNAMatch,
					SignalStrength: b.cfg.DNAMatchStrength,
					Evidence:       map[string]interface{}{"fingerprint": fingerprint},
				})
			}
		}
	}
	return nil
}

// RunDeployerSignals runs signals 2–8 for deployer against the given set of
// known deployer wallets, bounded to cfg.SignalConcurrency concurrent
// signals. Each signal tolerates its own RPC failures; none abort the rest.
func (b *Builder) RunDeployerSignals(ctx context.Context, deployer string, knownDeployers []string) {
	sem := semaphore.NewWeighted(b.cfg.SignalConcurrency)
	var wg sync.WaitGroup

	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem.Acquire(ctx, 1) != nil {
				return
			}
			defer sem.Release(1)
			fn()
		}()
	}

	knownSet := make(map[string]bool, len(knownDeployers))
	for _, d := range knownDeployers {
		if d != deployer {
			knownSet[d] = true
		}
	}

	run(func() { b.signalSolTransfer(ctx, deployer, knownSet) })
	run(func() { b.signalTimingSync(ctx, deployer) })
	run(func() { b.signalPhashCluster(ctx, deployer, knownDeployers) })
	run(func() { b.signalCrossHolding(ctx, deployer) })
	run(func() { b.signalFundingLink(ctx, deployer, knownSet) })
	run(func() { b.signalSharedLP(ctx, deployer, knownDeployers) })
	run(func() { b.signalSniperRing(ctx, deployer, knownDeployers) })

	wg.Wait()
}
