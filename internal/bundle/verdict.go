package bundle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lineage-agent/forensics/internal/models"
)

// Flag tokens recorded on a wallet's red-flag list. These are stable labels,
// not free text, so downstream reporting can group on them.
const (
	flagDirectTransferToDeployer = "DIRECT_TRANSFER_TO_DEPLOYER"
	flagPrefundedByDeployer      = "PREFUNDED_BY_DEPLOYER"
	flagTransferredToLinked      = "TRANSFERRED_TO_LINKED"
	flagIndirectLink             = "INDIRECT_LINK"
	flagFundedByCommon           = "FUNDED_BY_COMMON"
	flagDormantBeforeLaunch      = "DORMANT_BEFORE_LAUNCH"
	flagCommonSink               = "COMMON_SINK"
)

const coordinatedSellSlotWindow = 5

// analyzeWallets runs phases 2 through 4: pre-sell profiling, post-sell
// tracing informed by the deployer-linked set, then cross-wallet
// coordination detection over the whole bundle.
func (a *Analyzer) analyzeWallets(ctx context.Context, mint, deployer string, mintCreatedAt time.Time, launchSlot uint64, wallets []string, solSpent map[string]float64, priorLaunches int) ([]models.BundleWalletAnalysis, string, bool) {
	now := time.Now().UTC()
	weight := a.cfg.WalletConcurrency
	if weight <= 0 {
		weight = 1
	}
	sem := semaphore.NewWeighted(weight)

	preSells := make([]models.PreSellBehavior, len(wallets))
	var wg sync.WaitGroup
	for i, w := range wallets {
		wg.Add(1)
		go func(i int, w string) {
			defer wg.Done()
			if sem.Acquire(ctx, 1) != nil {
				return
			}
			defer sem.Release(1)
			preSells[i] = a.analyzePreSell(ctx, w, deployer, mintCreatedAt, now, priorLaunches)
		}(i, w)
	}
	wg.Wait()

	deployerLinked := map[string]bool{deployer: true}
	for i, p := range preSells {
		if p.PrefundSourceIsDeployer {
			deployerLinked[wallets[i]] = true
		}
	}

	postSells := make([]models.PostSellBehavior, len(wallets))
	for i, w := range wallets {
		wg.Add(1)
		go func(i int, w string) {
			defer wg.Done()
			if sem.Acquire(ctx, 1) != nil {
				return
			}
			defer sem.Release(1)
			postSells[i] = a.analyzePostSell(ctx, w, mint, deployer, launchSlot, deployerLinked)
		}(i, w)
	}
	wg.Wait()

	commonPrefund := computeCommonPrefundSource(preSells)
	commonSinks := computeCommonSinks(postSells)
	backfillCrossWallet(preSells, postSells, commonPrefund, commonSinks)
	coordinatedSell := coordinatedSellDetected(postSells)

	analyses := make([]models.BundleWalletAnalysis, len(wallets))
	for i, w := range wallets {
		analyses[i] = buildWalletAnalysis(w, solSpent[w], preSells[i], postSells[i])
	}
	return analyses, commonPrefund, coordinatedSell
}

// computeCommonPrefundSource (Phase 4) returns any address that funded two
// or more distinct bundle wallets before launch, or "" if none did.
func computeCommonPrefundSource(preSells []models.PreSellBehavior) string {
	counts := map[string]int{}
	for _, p := range preSells {
		if p.PrefundSource != "" {
			counts[p.PrefundSource]++
		}
	}
	for source, n := range counts {
		if n >= 2 {
			return source
		}
	}
	return ""
}

// computeCommonSinks (Phase 4) returns every destination that received
// funds from two or more distinct bundle wallets.
func computeCommonSinks(postSells []models.PostSellBehavior) map[string]bool {
	counts := map[string]int{}
	for _, p := range postSells {
		seen := map[string]bool{}
		for _, d := range p.FundDestinations {
			if !seen[d.Destination] {
				counts[d.Destination]++
				seen[d.Destination] = true
			}
		}
	}
	sinks := map[string]bool{}
	for dest, n := range counts {
		if n >= 2 {
			sinks[dest] = true
		}
	}
	return sinks
}

// backfillCrossWallet (Phase 4) applies cross-wallet derived facts back onto
// each wallet's pre/post-sell records: common-sink destinations get marked
// seen-in-other-bundles, and wallets sharing the common prefund source are
// flagged as funded by a known coordinator.
func backfillCrossWallet(preSells []models.PreSellBehavior, postSells []models.PostSellBehavior, commonPrefund string, commonSinks map[string]bool) {
	for i := range postSells {
		if commonPrefund != "" && preSells[i].PrefundSource == commonPrefund {
			preSells[i].PrefundSourceIsKnownFunder = true
		}
		hasCommon := false
		for j := range postSells[i].FundDestinations {
			if commonSinks[postSells[i].FundDestinations[j].Destination] {
				postSells[i].FundDestinations[j].SeenInOtherBundles = true
				hasCommon = true
			}
		}
		if hasCommon {
			postSells[i].CommonDestinationWithOtherBundles = true
		}
	}
}

// coordinatedSellDetected (Phase 4) reports whether three or more bundle
// wallets sold within any 5-slot window of each other.
func coordinatedSellDetected(postSells []models.PostSellBehavior) bool {
	var slots []uint64
	for _, p := range postSells {
		if p.SellDetected && p.SellSlot != nil {
			slots = append(slots, *p.SellSlot)
		}
	}
	if len(slots) < 3 {
		return false
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for i := 0; i+2 < len(slots); i++ {
		if slots[i+2]-slots[i] <= coordinatedSellSlotWindow {
			return true
		}
	}
	return false
}

// buildWalletAnalysis (Phase 5, per-wallet) assigns a verdict to a single
// bundle wallet. The first matching rule wins.
func buildWalletAnalysis(wallet string, solSpent float64, pre models.PreSellBehavior, post models.PostSellBehavior) models.BundleWalletAnalysis {
	if post.DirectTransferToDeployer {
		return models.BundleWalletAnalysis{
			Wallet: wallet, SOLSpent: solSpent, PreSell: pre, PostSell: post,
			RedFlags: []string{flagDirectTransferToDeployer},
			Verdict:  models.VerdictConfirmedTeam,
		}
	}
	if pre.PrefundSourceIsDeployer && post.TransferToDeployerLinkedWallet {
		return models.BundleWalletAnalysis{
			Wallet: wallet, SOLSpent: solSpent, PreSell: pre, PostSell: post,
			RedFlags: []string{flagPrefundedByDeployer, flagTransferredToLinked},
			Verdict:  models.VerdictConfirmedTeam,
		}
	}

	var flags []string
	if pre.PrefundSourceIsDeployer {
		flags = append(flags, flagPrefundedByDeployer)
	}
	if post.TransferToDeployerLinkedWallet {
		flags = append(flags, flagTransferredToLinked)
	}
	if post.IndirectViaIntermediary {
		flags = append(flags, flagIndirectLink)
	}
	if pre.PrefundSourceIsKnownFunder {
		flags = append(flags, flagFundedByCommon)
	}
	if pre.IsDormant {
		flags = append(flags, flagDormantBeforeLaunch)
	}
	if post.CommonDestinationWithOtherBundles {
		flags = append(flags, flagCommonSink)
	}

	var verdict models.BundleWalletVerdict
	switch {
	case post.TransferToDeployerLinkedWallet:
		verdict = models.VerdictSuspectedTeam
	case post.IndirectViaIntermediary && len(flags) >= 2:
		verdict = models.VerdictSuspectedTeam
	case pre.PrefundSourceIsDeployer && len(flags) >= 2:
		verdict = models.VerdictSuspectedTeam
	case len(flags) >= 3:
		verdict = models.VerdictCoordinatedDump
	case pre.PrefundSourceIsKnownFunder && post.CommonDestinationWithOtherBundles:
		verdict = models.VerdictCoordinatedDump
	case pre.IsDormant && post.CommonDestinationWithOtherBundles:
		verdict = models.VerdictCoordinatedDump
	default:
		verdict = models.VerdictEarlyBuyer
	}

	return models.BundleWalletAnalysis{
		Wallet: wallet, SOLSpent: solSpent, PreSell: pre, PostSell: post,
		RedFlags: flags, Verdict: verdict,
	}
}

// aggregate rolls up per-wallet analyses, already enriched with the
// cross-wallet facts from Phase 4, into the mint-level report.
func aggregate(mint, deployer string, launchSlot uint64, analyses []models.BundleWalletAnalysis, commonPrefund string, coordinatedSell bool) *models.BundleExtractionReport {
	report := &models.BundleExtractionReport{
		Mint:                    mint,
		Deployer:                deployer,
		LaunchSlot:              launchSlot,
		CommonPrefundSource:     commonPrefund,
		CoordinatedSellDetected: coordinatedSell,
	}

	sinkSeen := map[string]bool{}
	for _, wa := range analyses {
		report.BundleWallets = append(report.BundleWallets, wa)
		report.TotalSOLSpentByBundle += wa.SOLSpent
		for _, d := range wa.PostSell.FundDestinations {
			if d.SeenInOtherBundles {
				sinkSeen[d.Destination] = true
			}
		}

		switch wa.Verdict {
		case models.VerdictConfirmedTeam:
			report.ConfirmedTeamWallets = append(report.ConfirmedTeamWallets, wa.Wallet)
			report.TotalSOLExtractedConfirmed += wa.PostSell.SOLReceivedFromSell
		case models.VerdictSuspectedTeam:
			report.SuspectedTeamWallets = append(report.SuspectedTeamWallets, wa.Wallet)
		case models.VerdictCoordinatedDump:
			report.CoordinatedDumpWallets = append(report.CoordinatedDumpWallets, wa.Wallet)
		case models.VerdictEarlyBuyer:
			report.EarlyBuyerWallets = append(report.EarlyBuyerWallets, wa.Wallet)
		}
	}
	report.CommonSinkWallets = sortedCopy(mapKeys(sinkSeen))

	report.OverallVerdict, report.EvidenceChain = decideOverallVerdict(report)
	return report
}

func mapKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// decideOverallVerdict (Phase 5, overall) walks the priority-ordered
// decision tree over the mint's whole bundle and explains the call with a
// short evidence trail.
func decideOverallVerdict(report *models.BundleExtractionReport) (models.OverallVerdict, []string) {
	confirmed := len(report.ConfirmedTeamWallets)
	suspected := len(report.SuspectedTeamWallets)
	dumps := len(report.CoordinatedDumpWallets)

	var chain []string
	switch {
	case confirmed >= 2 || (confirmed >= 1 && suspected >= 1):
		chain = append(chain, labeled("confirmed team wallets", confirmed))
		if suspected > 0 {
			chain = append(chain, labeled("suspected team wallets", suspected))
		}
		return models.OverallConfirmedTeamExtraction, chain
	case suspected >= 2 || confirmed >= 1:
		chain = append(chain, labeled("suspected team wallets", suspected))
		if confirmed > 0 {
			chain = append(chain, labeled("confirmed team wallets", confirmed))
		}
		return models.OverallSuspectedTeamExtraction, chain
	case dumps >= 3 && len(report.CommonSinkWallets) >= 1:
		chain = append(chain, labeled("coordinated dump wallets", dumps))
		chain = append(chain, "shared payout destination across bundle wallets")
		return models.OverallSuspectedTeamExtraction, chain
	case dumps >= 3 || (dumps >= 2 && report.CoordinatedSellDetected):
		chain = append(chain, labeled("coordinated dump wallets", dumps))
		if report.CoordinatedSellDetected {
			chain = append(chain, "three or more bundle wallets sold within a 5-slot window")
		}
		return models.OverallCoordinatedDumpUnknownTeam, chain
	default:
		chain = append(chain, "no deployer link or coordination evidence found among bundle wallets")
		return models.OverallEarlyBuyersNoLinkProven, chain
	}
}

func labeled(label string, n int) string {
	return fmt.Sprintf("%s: %d wallet(s)", label, n)
}
