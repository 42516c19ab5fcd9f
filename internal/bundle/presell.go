package bundle

import (
	"context"
	"sort"
	"time"

	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
)

const (
	preSellLookback          = 100
	preLaunchWindow          = 72 * time.Hour
	dormancyGap              = 30 * 24 * time.Hour
	maxPrefundParse          = 15
	minPrefundLamports       = 10_000_000 // 0.01 SOL
)

// analyzePreSell (Phase 2) profiles wallet's activity before launchTime: its
// age, whether it looks dormant until this launch, and whether it was
// prefunded by a traceable source within the 72h before launch.
func (a *Analyzer) analyzePreSell(ctx context.Context, wallet, deployer string, launchTime, now time.Time, priorLaunches int) models.PreSellBehavior {
	sigs, err := a.rpc.GetSignaturesForAddress(ctx, wallet, "", preSellLookback)
	if err != nil || len(sigs) == 0 {
		return models.PreSellBehavior{IsDormant: true, SameDeployerPriorLaunches: priorLaunches}
	}

	var minBlockTime, maxPreLaunchBlockTime *time.Time
	windowStart := launchTime.Add(-preLaunchWindow)
	var preLaunchSigs []rpcclient.Signature

	for _, sig := range sigs {
		if sig.BlockTime == nil {
			continue
		}
		t := time.Unix(*sig.BlockTime, 0).UTC()
		if minBlockTime == nil || t.Before(*minBlockTime) {
			tt := t
			minBlockTime = &tt
		}
		if !t.Before(launchTime) {
			continue
		}
		if maxPreLaunchBlockTime == nil || t.After(*maxPreLaunchBlockTime) {
			tt := t
			maxPreLaunchBlockTime = &tt
		}
		if !t.Before(windowStart) {
			preLaunchSigs = append(preLaunchSigs, sig)
		}
	}

	ageDays := 0.0
	if minBlockTime != nil {
		ageDays = now.Sub(*minBlockTime).Hours() / 24
	}

	isDormant := true
	if maxPreLaunchBlockTime != nil {
		isDormant = launchTime.Sub(*maxPreLaunchBlockTime) > dormancyGap
	}

	sort.Slice(preLaunchSigs, func(i, j int) bool { return preLaunchSigs[i].Slot > preLaunchSigs[j].Slot })
	parseSet := preLaunchSigs
	if len(parseSet) > maxPrefundParse {
		parseSet = parseSet[:maxPrefundParse]
	}

	uniqueTokens := map[string]bool{}
	var prefundSource string
	var prefundSOL, prefundHoursBefore float64

	for _, sig := range parseSet {
		tx, err := a.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			continue
		}
		for _, tb := range tx.Meta.PostTokenBalances {
			if tb.Owner == wallet {
				uniqueTokens[tb.Mint] = true
			}
		}
		src, lamports, ok := largestIncomingTransfer(tx, wallet, minPrefundLamports)
		if !ok {
			continue
		}
		sol := float64(lamports) / 1e9
		if sol > prefundSOL {
			prefundSource = src
			prefundSOL = sol
			if sig.BlockTime != nil {
				prefundHoursBefore = launchTime.Sub(time.Unix(*sig.BlockTime, 0).UTC()).Hours()
			}
		}
	}

	return models.PreSellBehavior{
		WalletAgeDays:             ageDays,
		IsDormant:                 isDormant,
		PreLaunchTxCount:          len(preLaunchSigs),
		PreLaunchUniqueTokens:     len(uniqueTokens),
		PrefundSource:             prefundSource,
		PrefundSOL:                prefundSOL,
		PrefundHoursBeforeLaunch:  prefundHoursBefore,
		PrefundSourceIsDeployer:   prefundSource != "" && prefundSource == deployer,
		SameDeployerPriorLaunches: priorLaunches,
	}
}

// largestIncomingTransfer finds wallet's largest lamport increase in tx (at
// least minLamports), inferring the counterparty with the largest matching
// decrease as the probable source.
func largestIncomingTransfer(tx *rpcclient.Transaction, wallet string, minLamports int64) (source string, lamports int64, ok bool) {
	walletIdx := indexOf(tx, wallet)
	if walletIdx < 0 {
		return "", 0, false
	}
	delta := tx.BalanceDelta(walletIdx)
	if delta < minLamports {
		return "", 0, false
	}

	bestIdx := -1
	var mostNegative int64
	for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
		if i == walletIdx {
			continue
		}
		d := tx.BalanceDelta(i)
		if d < mostNegative {
			mostNegative = d
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return "", 0, false
	}
	return tx.AccountAt(bestIdx), delta, true
}
