// Package bundle implements the five-phase buyer-forensics pipeline: discover
// the wallets that bought a token within its launch window, profile each
// one's behavior before and after the launch, and roll the per-wallet
// verdicts up into a single extraction verdict for the mint.
package bundle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
	"github.com/lineage-agent/forensics/internal/store"
)

const (
	// bundleWindowSlots is the slot depth of the launch bundle window:
	// [creation_slot, creation_slot+4].
	bundleWindowSlots = 4
	// maxLaunchSigs is how many of the mint's earliest signatures are
	// inspected to find the launch slot and bundle-window buyers.
	maxLaunchSigs = 50
	// minBundleSpendLamports is the smallest SOL decrease (~0.001 SOL)
	// that counts a signer as a bundle buyer.
	minBundleSpendLamports = 1_000_000
)

// Config tunes the pipeline's fan-out and discovery limits.
type Config struct {
	MaxBundleWallets  int           // bundle wallets kept, top-N by SOL spent
	WalletConcurrency int64         // phase 2/3 per-wallet semaphore weight
	Timeout           time.Duration // overall analyze_bundle budget
}

// DefaultConfig matches the pipeline's documented bounds: at most 20 bundle
// wallets, analyzed with bounded parallelism, inside a 45s budget.
func DefaultConfig() Config {
	return Config{
		MaxBundleWallets:  20,
		WalletConcurrency: 20,
		Timeout:           45 * time.Second,
	}
}

// Analyzer runs the bundle-extraction pipeline for a single mint.
type Analyzer struct {
	rpc   *rpcclient.Client
	store *store.Store
	cfg   Config
}

func New(rpc *rpcclient.Client, st *store.Store, cfg Config) *Analyzer {
	return &Analyzer{rpc: rpc, store: st, cfg: cfg}
}

// effectiveConfig fills in any zero-valued fields with DefaultConfig's
// bounds, so a caller that only cares about overriding one knob doesn't
// have to restate the rest.
func (a *Analyzer) effectiveConfig() Config {
	cfg := a.cfg
	def := DefaultConfig()
	if cfg.MaxBundleWallets <= 0 {
		cfg.MaxBundleWallets = def.MaxBundleWallets
	}
	if cfg.WalletConcurrency <= 0 {
		cfg.WalletConcurrency = def.WalletConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// Analyze runs phases 1 through 5 for mint, returning the cached report if
// one was computed within the last 24h, or nil if the mint had no bundle
// activity at all.
func (a *Analyzer) Analyze(ctx context.Context, mint string) (*models.BundleExtractionReport, error) {
	if cached, ok, err := a.store.BundleReportGet(mint); err == nil && ok {
		return cached, nil
	}

	a.cfg = a.effectiveConfig()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	deployer, createdAt, err := a.rpc.GetDeployerAndTimestamp(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("bundle: resolving deployer: %w", err)
	}

	launchSlot, wallets, solSpent, err := a.discoverBundleWallets(ctx, mint, deployer)
	if err != nil {
		return nil, fmt.Errorf("bundle: discovering bundle wallets: %w", err)
	}
	if len(wallets) == 0 {
		return nil, nil
	}

	priorLaunches := a.priorLaunchCount(deployer, createdAt)

	analyses, commonPrefund, coordinatedSell := a.analyzeWallets(ctx, mint, deployer, createdAt, launchSlot, wallets, solSpent, priorLaunches)

	report := aggregate(mint, deployer, launchSlot, analyses, commonPrefund, coordinatedSell)
	if err := a.store.BundleReportPut(*report); err != nil {
		return report, fmt.Errorf("bundle: caching report: %w", err)
	}
	return report, nil
}

// priorLaunchCount counts token_created events recorded for deployer strictly
// before currentCreatedAt.
func (a *Analyzer) priorLaunchCount(deployer string, currentCreatedAt time.Time) int {
	events, err := a.store.EventsByDeployer(deployer)
	if err != nil {
		return 0
	}
	n := 0
	for _, ev := range events {
		if ev.EventType == models.EventTokenCreated && ev.CreatedAt.Before(currentCreatedAt) {
			n++
		}
	}
	return n
}

// discoverBundleWallets (Phase 1) walks the mint's earliest signatures,
// reversed into oldest-first, to find the creation slot, then collects every
// non-deployer, non-program signer whose SOL balance decreased by at least
// minBundleSpendLamports within the bundle window, capped to the top 20 by
// SOL spent.
func (a *Analyzer) discoverBundleWallets(ctx context.Context, mint, deployer string) (uint64, []string, map[string]float64, error) {
	earliest, err := a.rpc.GetEarliestSignatures(ctx, mint, 5, maxLaunchSigs)
	if err != nil {
		return 0, nil, nil, err
	}
	if len(earliest) == 0 {
		return 0, nil, nil, fmt.Errorf("no signatures found for mint")
	}

	launchSlot := earliest[0].Slot
	spentLamports := map[string]int64{}

	for _, sig := range earliest {
		if sig.Slot > launchSlot+bundleWindowSlots {
			continue
		}
		tx, err := a.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil || tx.Meta.Err != nil {
			continue
		}
		for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
			key := tx.Transaction.Message.AccountKeys[i]
			if !key.Signer || key.Pubkey == "" || key.Pubkey == deployer || labels.IsSkipped(key.Pubkey) {
				continue
			}
			delta := tx.BalanceDelta(i)
			if delta > -minBundleSpendLamports {
				continue
			}
			spentLamports[key.Pubkey] += -delta
		}
	}

	type entry struct {
		wallet  string
		lamports int64
	}
	ranked := make([]entry, 0, len(spentLamports))
	for w, l := range spentLamports {
		ranked = append(ranked, entry{w, l})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].lamports > ranked[j].lamports })
	if len(ranked) > a.cfg.MaxBundleWallets {
		ranked = ranked[:a.cfg.MaxBundleWallets]
	}

	wallets := make([]string, len(ranked))
	solSpent := make(map[string]float64, len(ranked))
	for i, e := range ranked {
		wallets[i] = e.wallet
		solSpent[e.wallet] = float64(e.lamports) / 1e9
	}
	return launchSlot, wallets, solSpent, nil
}

// sortedCopy returns a lexicographically sorted copy of ss.
func sortedCopy(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	return out
}
