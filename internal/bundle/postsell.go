package bundle

import (
	"context"
	"sort"

	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
)

const (
	postSellScanWindow    = 30         // oldest-first txs scanned to find the full sell
	postSellOutflowWindow = 20         // post-sell sigs scanned for hop-0 outflows
	minOutflowLamports    = 50_000_000 // 0.05 SOL
	maxHop0Destinations   = 10
	maxHop1Traced         = 5
	hop1RecentSigs        = 30
	hop1MaxTxsScanned     = 10
)

// analyzePostSell (Phase 3) looks for wallet fully exiting its mint position
// at or after launchSlot, then traces where the resulting SOL moved.
func (a *Analyzer) analyzePostSell(ctx context.Context, wallet, mint, deployer string, launchSlot uint64, deployerLinked map[string]bool) models.PostSellBehavior {
	recent, err := a.rpc.GetSignaturesForAddress(ctx, wallet, "", 100)
	if err != nil || len(recent) == 0 {
		return models.PostSellBehavior{}
	}

	var afterLaunch []rpcclient.Signature
	for _, sig := range recent {
		if sig.Slot >= launchSlot {
			afterLaunch = append(afterLaunch, sig)
		}
	}
	if len(afterLaunch) == 0 {
		return models.PostSellBehavior{}
	}
	sort.Slice(afterLaunch, func(i, j int) bool { return afterLaunch[i].Slot < afterLaunch[j].Slot })

	scanSet := afterLaunch
	if len(scanSet) > postSellScanWindow {
		scanSet = scanSet[:postSellScanWindow]
	}

	var sellSig rpcclient.Signature
	var sellTx *rpcclient.Transaction
	found := false
	for _, sig := range scanSet {
		tx, err := a.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			continue
		}
		if walletSoldOut(tx, wallet, mint) {
			sellSig, sellTx, found = sig, tx, true
			break
		}
	}
	if !found {
		return models.PostSellBehavior{}
	}

	walletIdx := indexOf(sellTx, wallet)
	solReceived := float64(sellTx.BalanceDelta(walletIdx)) / 1e9
	if solReceived < 0 {
		solReceived = 0
	}

	slot := sellSig.Slot
	behavior := models.PostSellBehavior{
		SellDetected:        true,
		SellSlot:            &slot,
		SellTxSignature:     sellSig.Signature,
		SOLReceivedFromSell: solReceived,
	}

	var afterSell []rpcclient.Signature
	for _, sig := range afterLaunch {
		if sig.Slot >= sellSig.Slot && sig.Signature != sellSig.Signature {
			afterSell = append(afterSell, sig)
		}
	}
	if len(afterSell) > postSellOutflowWindow {
		afterSell = afterSell[:postSellOutflowWindow]
	}

	accumulated := accumulateOutflows(ctx, a.rpc, afterSell, wallet, minOutflowLamports)
	top := topOutflows(accumulated, maxHop0Destinations)

	var destinations []models.FundDestination
	tracedCount := 0
	for _, o := range top {
		linked := deployerLinked[o.destination]
		isDeployer := o.destination == deployer
		destinations = append(destinations, models.FundDestination{
			Destination:    o.destination,
			Lamports:       o.lamports,
			Hop:            0,
			LinkToDeployer: linked || isDeployer,
		})
		if isDeployer {
			behavior.DirectTransferToDeployer = true
		} else if linked {
			behavior.TransferToDeployerLinkedWallet = true
		}

		if !isDeployer && !linked && tracedCount < maxHop1Traced {
			tracedCount++
			hop1Sigs, err := a.rpc.GetSignaturesForAddress(ctx, o.destination, "", hop1RecentSigs)
			if err != nil {
				continue
			}
			if len(hop1Sigs) > hop1MaxTxsScanned {
				hop1Sigs = hop1Sigs[:hop1MaxTxsScanned]
			}
			hop1Accum := accumulateOutflows(ctx, a.rpc, hop1Sigs, o.destination, minOutflowLamports)
			for _, h := range topOutflows(hop1Accum, maxHop0Destinations) {
				hLinked := deployerLinked[h.destination] || h.destination == deployer
				destinations = append(destinations, models.FundDestination{
					Destination:    h.destination,
					Lamports:       h.lamports,
					Hop:            1,
					LinkToDeployer: hLinked,
				})
				if hLinked {
					behavior.IndirectViaIntermediary = true
				}
			}
		}
	}

	behavior.FundDestinations = destinations
	return behavior
}

// walletSoldOut reports whether tx shows wallet's mint balance dropping from
// a meaningful amount to (near) zero.
func walletSoldOut(tx *rpcclient.Transaction, wallet, mint string) bool {
	var pre, post float64
	sawPre, sawPost := false, false
	for _, tb := range tx.Meta.PreTokenBalances {
		if tb.Owner == wallet && tb.Mint == mint {
			pre = tb.UiTokenAmount.UiAmount
			sawPre = true
		}
	}
	for _, tb := range tx.Meta.PostTokenBalances {
		if tb.Owner == wallet && tb.Mint == mint {
			post = tb.UiTokenAmount.UiAmount
			sawPost = true
		}
	}
	if !sawPre || pre <= 0 {
		return false
	}
	if sawPost && post > 1 {
		return false
	}
	return true
}

// indexOf returns the account-key index of addr within tx, or -1.
func indexOf(tx *rpcclient.Transaction, addr string) int {
	for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
		if tx.AccountAt(i) == addr {
			return i
		}
	}
	return -1
}

type outflow struct {
	destination string
	lamports    int64
}

// accumulateOutflows scans sigs for transactions in which source's lamport
// balance decreases, crediting the decrease to every other account whose
// balance increases by at least minLamports (a transaction can fan out to
// several destinations at once, e.g. a swap router).
func accumulateOutflows(ctx context.Context, rpc *rpcclient.Client, sigs []rpcclient.Signature, source string, minLamports int64) map[string]int64 {
	totals := map[string]int64{}
	for _, sig := range sigs {
		tx, err := rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			continue
		}
		idx := indexOf(tx, source)
		if idx < 0 {
			continue
		}
		if tx.BalanceDelta(idx) >= 0 {
			continue
		}
		for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
			if i == idx {
				continue
			}
			d := tx.BalanceDelta(i)
			if d < minLamports {
				continue
			}
			dest := tx.AccountAt(i)
			if dest == "" || labels.IsSkipped(dest) {
				continue
			}
			totals[dest] += d
		}
	}
	return totals
}

// topOutflows returns the n largest entries of totals by lamports, in
// descending order.
func topOutflows(totals map[string]int64, n int) []outflow {
	out := make([]outflow, 0, len(totals))
	for dest, lamports := range totals {
		out = append(out, outflow{destination: dest, lamports: lamports})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].lamports > out[j].lamports })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
