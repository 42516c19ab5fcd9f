package cartel

import (
	"context"
	"math/bits"
	"strconv"
	"time"

	"github.com/lineage-agent/forensics/internal/models"
)

// signalSolTransfer emits an edge for every persisted sol_flow edge from
// deployer to another known deployer wallet worth at least
// SolTransferMinLamports, strength min(1, amount/10 SOL).
func (b *Builder) signalSolTransfer(ctx context.Context, deployer string, knownDeployers map[string]bool) {
	edges, err := b.store.SolFlowEdgesFromAddress(deployer)
	if err != nil {
		return
	}
	for _, e := range edges {
		if !knownDeployers[e.ToAddress] || e.AmountLamports < b.cfg.SolTransferMinLamports {
			continue
		}
		strength := e.AmountSOL / b.cfg.SolTransferDivisorSOL
		if strength > 1 {
			strength = 1
		}
		_ = b.store.UpsertCartelEdge(models.CartelEdge{
			WalletA:        deployer,
			WalletB:        e.ToAddress,
			SignalType:     models.SignalSolTransfer,
			SignalStrength: strength,
			Evidence:       map[string]interface{}{"amount_sol": e.AmountSOL, "signature": e.Signature, "mint": e.Mint},
		})
	}
}

// signalTimingSync emits an edge between deployer and any other deployer who
// launched a token in the same narrative within TimingSyncWindow, strength
// max(0.1, 1 - |Δt|/window).
func (b *Builder) signalTimingSync(ctx context.Context, deployer string) {
	own, err := b.store.EventsByDeployer(deployer)
	if err != nil {
		return
	}
	for _, token := range own {
		if token.EventType != models.EventTokenCreated || token.Narrative == "" || token.CreatedAt.IsZero() {
			continue
		}
		candidates, err := b.store.EventsByNarrative(token.Narrative, time.Time{})
		if err != nil {
			continue
		}
		for _, other := range candidates {
			if other.Deployer == "" || other.Deployer == deployer || other.CreatedAt.IsZero() {
				continue
			}
			delta := other.CreatedAt.Sub(token.CreatedAt)
			if delta < 0 {
				delta = -delta
			}
			if delta > b.cfg.TimingSyncWindow {
				continue
			}
			strength := 1 - delta.Seconds()/b.cfg.TimingSyncWindow.Seconds()
			if strength < b.cfg.TimingSyncMinStrength {
				strength = b.cfg.TimingSyncMinStrength
			}
			_ = b.store.UpsertCartelEdge(models.CartelEdge{
				WalletA:        deployer,
				WalletB:        other.Deployer,
				SignalType:     models.SignalTimingSync,
				SignalStrength: strength,
				Evidence:       map[string]interface{}{"narrative": token.Narrative, "mint_a": token.Mint, "mint_b": other.Mint},
			})
		}
	}
}

// signalPhashCluster compares every pHash cached on deployer's tokens
// (extra_json.phash, a hex-encoded 64-bit perceptual hash) against every
// other known deployer's token pHashes, emitting an edge when the Hamming
// distance is within PhashClusterMaxDistance.
func (b *Builder) signalPhashCluster(ctx context.Context, deployer string, allDeployers []string) {
	own, err := b.store.EventsByDeployer(deployer)
	if err != nil {
		return
	}
	ownHashes := tokenPhashes(own)
	if len(ownHashes) == 0 {
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
		otherHashes := tokenPhashes(otherEvents)
		best := -1
		var bestMintA, bestMintB string
		for mintA, hashA := range ownHashes {
			for mintB, hashB := range otherHashes {
				distance := bits.OnesCount64(hashA ^ hashB)
				if best == -1 || distance < best {
					best, bestMintA, bestMintB = distance, mintA, mintB
				}
			}
		}
		if best < 0 || best > b.cfg.PhashClusterMaxDistance {
			continue
		}
		strength := 1 - float64(best)/64
		if strength < b.cfg.PhashClusterMinStrength {
			strength = b.cfg.PhashClusterMinStrength
		}
		_ = b.store.UpsertCartelEdge(models.CartelEdge{
			WalletA:        deployer,
			WalletB:        other,
			SignalType:     models.SignalPhashCluster,
			SignalStrength: strength,
			Evidence:       map[string]interface{}{"hamming_distance": best, "mint_a": bestMintA, "mint_b": bestMintB},
		})
	}
}

func tokenPhashes(events []models.TokenEvent) map[string]uint64 {
	out := make(map[string]uint64)
	for _, ev := range events {
		if ev.EventType != models.EventTokenCreated || ev.Extra == nil {
			continue
		}
		raw, ok := ev.Extra["phash"].(string)
		if !ok || raw == "" {
			continue
		}
		hash, err := strconv.ParseUint(raw, 16, 64)
		if err != nil {
			continue
		}
		out[ev.Mint] = hash
	}
	return out
}

// signalCrossHolding fires when deployer (who must have launched at least
// CrossHoldingMinTokens tokens) currently holds a nonzero balance of a
// token another deployer created.
func (b *Builder) signalCrossHolding(ctx context.Context, deployer string) {
	own, err := b.store.EventsByDeployer(deployer)
	if err != nil {
		return
	}
	launched := 0
	for _, ev := range own {
		if ev.EventType == models.EventTokenCreated {
			launched++
		}
	}
	if launched < b.cfg.CrossHoldingMinTokens {
		return
	}

	holdings, err := b.rpc.GetDeployerTokenHoldings(ctx, deployer)
	if err != nil || len(holdings) == 0 {
		return
	}
	creators, err := b.store.EventsForMints(models.EventTokenCreated, holdings)
	if err != nil {
		return
	}
	for _, ev := range creators {
		if ev.Deployer == "" || ev.Deployer == deployer {
			continue
		}
		_ = b.store.UpsertCartelEdge(models.CartelEdge{
			WalletA:        deployer,
			WalletB:        ev.Deployer,
			SignalType:     models.SignalCrossHolding,
			SignalStrength: b.cfg.CrossHoldingStrength,
			Evidence:       map[string]interface{}{"mint": ev.Mint},
		})
	}
}
