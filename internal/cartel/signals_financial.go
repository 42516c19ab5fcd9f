package cartel

import (
	"context"
	"time"

	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
)

const (
	lpScanSigs      = 50
	sniperScanPages = 3
)

// signalFundingLink scans the 72h window before deployer's earliest launch
// for SOL transfers to/from another known deployer wallet worth at least
// FundingLinkMinLamports.
func (b *Builder) signalFundingLink(ctx context.Context, deployer string, knownDeployers map[string]bool) {
	own, err := b.store.EventsByDeployer(deployer)
	if err != nil {
		return
	}
	earliest := earliestLaunch(own)
	if earliest.IsZero() {
		return
	}
	windowStart := earliest.Add(-b.cfg.FundingLinkWindow)

	sigs, err := b.rpc.GetSignaturesForAddress(ctx, deployer, "", b.cfg.FundingLinkLookbackSigs)
	if err != nil {
		return
	}
	for _, sig := range sigs {
		if sig.BlockTime == nil {
			continue
		}
		blockTime := time.Unix(*sig.BlockTime, 0).UTC()
		if blockTime.Before(windowStart) || !blockTime.Before(earliest) {
			continue
		}
		tx, err := b.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			continue
		}
		srcIdx := indexOf(tx, deployer)
		if srcIdx < 0 {
			continue
		}
		for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
			if i == srcIdx {
				continue
			}
			counterpart := tx.AccountAt(i)
			if !knownDeployers[counterpart] {
				continue
			}
			delta := tx.BalanceDelta(i)
			if delta < 0 {
				delta = -delta
			}
			if delta < b.cfg.FundingLinkMinLamports {
				continue
			}
			amountSOL := float64(delta) / 1e9
			hoursBefore := earliest.Sub(blockTime).Hours()
			amountFactor := amountSOL / 5
			if amountFactor > 1 {
				amountFactor = 1
			}
			timeFactor := 1 - hoursBefore/72
			if timeFactor < 0.3 {
				timeFactor = 0.3
			}
			strength := 0.6*amountFactor + 0.4*timeFactor
			_ = b.store.UpsertCartelEdge(models.CartelEdge{
				WalletA:        deployer,
				WalletB:        counterpart,
				SignalType:     models.SignalFundingLink,
				SignalStrength: strength,
				Evidence:       map[string]interface{}{"amount_sol": amountSOL, "hours_before_launch": hoursBefore, "signature": sig.Signature},
			})
		}
	}
}

func earliestLaunch(events []models.TokenEvent) time.Time {
	var earliest time.Time
	for _, ev := range events {
		if ev.EventType != models.EventTokenCreated || ev.CreatedAt.IsZero() {
			continue
		}
		if earliest.IsZero() || ev.CreatedAt.Before(earliest) {
			earliest = ev.CreatedAt
		}
	}
	return earliest
}

// signalSharedLP compares deployer's cached LP-provider sets against every
// other known deployer's, emitting an edge on any overlap.
func (b *Builder) signalSharedLP(ctx context.Context, deployer string, allDeployers []string) {
	own, err := b.store.EventsByDeployer(deployer)
	if err != nil {
		return
	}
	ownLP := make(map[string]bool)
	for _, ev := range own {
		if ev.EventType != models.EventTokenCreated {
			continue
		}
		for _, w := range b.lpProvidersForToken(ctx, ev) {
			ownLP[w] = true
		}
	}
	if len(ownLP) == 0 {
		return
	}

	for _, other := range allDeployers {
		if other == deployer {
			continue
		}
		otherEvents, err := b.store.EventsByDeployer(other)
		if err != nil {
			continue
		}
		overlap := 0
		for _, ev := range otherEvents {
			if ev.EventType != models.EventTokenCreated {
				continue
			}
			for _, w := range b.lpProvidersForToken(ctx, ev) {
				if ownLP[w] {
					overlap++
				}
			}
		}
		if overlap == 0 {
			continue
		}
		strength := b.cfg.SharedLPBaseStrength + b.cfg.SharedLPPerOverlap*float64(overlap)
		if strength > 1 {
			strength = 1
		}
		_ = b.store.UpsertCartelEdge(models.CartelEdge{
			WalletA:        deployer,
			WalletB:        other,
			SignalType:     models.SignalSharedLP,
			SignalStrength: strength,
			Evidence:       map[string]interface{}{"overlap_count": overlap},
		})
	}
}

// lpProvidersForToken returns the cached LP-provider wallet set for ev's
// mint, computing and caching it on first use from the mint's early
// signatures: fee payers of transactions that invoked a known DEX/AMM
// program and are not the deployer itself.
func (b *Builder) lpProvidersForToken(ctx context.Context, ev models.TokenEvent) []string {
	if cached, ok := stringSliceFromExtra(ev.Extra, "lp_providers"); ok {
		return cached
	}

	sigs, err := b.rpc.GetSignaturesForAddress(ctx, ev.Mint, "", lpScanSigs)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	providers := []string{}
	for _, sig := range sigs {
		tx, err := b.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			continue
		}
		if !txInvokesLP(tx) {
			continue
		}
		payer := tx.AccountAt(0)
		if payer == "" || payer == ev.Deployer || labels.IsSkipped(payer) || seen[payer] {
			continue
		}
		seen[payer] = true
		providers = append(providers, payer)
	}

	_ = b.store.UpdateEventExtra(ev.Mint, ev.Deployer, mergeExtra(ev.Extra, "lp_providers", providers))
	return providers
}

func txInvokesLP(tx *rpcclient.Transaction) bool {
	for _, key := range tx.Transaction.Message.AccountKeys {
		if labels.IsLPProgram(key.Pubkey) {
			return true
		}
	}
	return false
}

// signalSniperRing compares deployer's cached early-buyer sets against
// every other known deployer's, emitting an edge when at least two early
// buyers are shared.
func (b *Builder) signalSniperRing(ctx context.Context, deployer string, allDeployers []string) {
	own, err := b.store.EventsByDeployer(deployer)
	if err != nil {
		return
	}
	ownBuyers := make(map[string]bool)
	for _, ev := range own {
		if ev.EventType != models.EventTokenCreated {
			continue
		}
		for _, w := range b.earlyBuyersForToken(ctx, ev) {
			ownBuyers[w] = true
		}
	}
	if len(ownBuyers) == 0 {
		return
	}

	for _, other := range allDeployers {
		if other == deployer {
			continue
		}
		otherEvents, err := b.store.EventsByDeployer(other)
		if err != nil {
			continue
		}
		shared := 0
		for _, ev := range otherEvents {
			if ev.EventType != models.EventTokenCreated {
				continue
			}
			for _, w := range b.earlyBuyersForToken(ctx, ev) {
				if ownBuyers[w] {
					shared++
				}
			}
		}
		if shared < 2 {
			continue
		}
		strength := b.cfg.SniperRingBaseStrength + b.cfg.SniperRingPerShared*float64(shared)
		if strength > 1 {
			strength = 1
		}
		_ = b.store.UpsertCartelEdge(models.CartelEdge{
			WalletA:        deployer,
			WalletB:        other,
			SignalType:     models.SignalSniperRing,
			SignalStrength: strength,
			Evidence:       map[string]interface{}{"shared_early_buyers": shared},
		})
	}
}

// earlyBuyersForToken returns the cached early-buyer wallet set for ev's
// mint, computing and caching it on first use from the mint's earliest
// signatures: non-deployer wallets whose post-token-balance for the mint
// exceeds their pre-token-balance.
func (b *Builder) earlyBuyersForToken(ctx context.Context, ev models.TokenEvent) []string {
	if cached, ok := stringSliceFromExtra(ev.Extra, "early_buyers"); ok {
		return cached
	}

	sigs, err := b.rpc.GetEarliestSignatures(ctx, ev.Mint, sniperScanPages, b.cfg.SniperRingLookback)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	buyers := []string{}
	for _, sig := range sigs {
		tx, err := b.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			continue
		}
		pre := make(map[string]float64)
		for _, tb := range tx.Meta.PreTokenBalances {
			if tb.Mint == ev.Mint {
				pre[tb.Owner] = tb.UiTokenAmount.UiAmount
			}
		}
		for _, tb := range tx.Meta.PostTokenBalances {
			if tb.Mint != ev.Mint || tb.Owner == ev.Deployer || tb.Owner == "" {
				continue
			}
			if tb.UiTokenAmount.UiAmount > pre[tb.Owner] && !seen[tb.Owner] {
				seen[tb.Owner] = true
				buyers = append(buyers, tb.Owner)
			}
		}
	}

	_ = b.store.UpdateEventExtra(ev.Mint, ev.Deployer, mergeExtra(ev.Extra, "early_buyers", buyers))
	return buyers
}

func stringSliceFromExtra(extra map[string]interface{}, key string) ([]string, bool) {
	raw, ok := extra[key]
	if !ok {
		return nil, false
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func mergeExtra(extra map[string]interface{}, key string, value interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		merged[k] = v
	}
	merged[key] = value
	return merged
}

func indexOf(tx *rpcclient.Transaction, addr string) int {
	for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
		if tx.AccountAt(i) == addr {
			return i
		}
	}
	return -1
}
