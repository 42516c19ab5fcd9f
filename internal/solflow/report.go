package solflow

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/models"
)

// buildReport aggregates the traced edges into a SolFlowReport: terminal
// wallets (recipients who never sent onward), CEX detection, the hop-0
// extraction total in SOL and (best-effort) USD, and any resolved
// cross-chain bridge exits.
func (t *Tracer) buildReport(ctx context.Context, mint, deployer string, edges []models.SolFlowEdge, rugTimestamp *time.Time) *models.SolFlowReport {
	var totalSOL float64
	maxHop := -1
	knownCEX := false
	toSet := map[string]bool{}
	fromSet := map[string]bool{}

	for _, e := range edges {
		if e.Hop == 0 {
			totalSOL += e.AmountSOL
		}
		if e.Hop > maxHop {
			maxHop = e.Hop
		}
		toSet[e.ToAddress] = true
		fromSet[e.FromAddress] = true
		if labels.IsCEX(e.ToAddress) {
			knownCEX = true
		}
	}

	var terminals []string
	for addr := range toSet {
		if !fromSet[addr] {
			terminals = append(terminals, addr)
		}
	}

	report := &models.SolFlowReport{
		Mint:              mint,
		Deployer:          deployer,
		TotalExtractedSOL: totalSOL,
		Flows:             edges,
		TerminalWallets:   terminals,
		KnownCEXDetected:  knownCEX,
		HopCount:          maxHop + 1,
		AnalysisTimestamp: time.Now().UTC(),
		RugTimestamp:      rugTimestamp,
		CrossChainExits:   t.resolveCrossChainExits(ctx, edges),
	}

	if t.market != nil {
		if price, err := t.market.SolPriceUSD(ctx, wsolMint); err == nil && price > 0 {
			usd := totalSOL * price
			report.TotalExtractedUSD = &usd
		}
	}
	return report
}

// resolveCrossChainExits scans edges landing on a known bridge program and
// queries the bridge's public attestation API, best effort, to resolve the
// destination chain and address. Failures are swallowed per wallet.
func (t *Tracer) resolveCrossChainExits(ctx context.Context, edges []models.SolFlowEdge) []models.CrossChainExit {
	if t.bridge == nil || t.bridgeBase == "" {
		return nil
	}

	seen := map[string]bool{}
	var exits []models.CrossChainExit
	for _, e := range edges {
		if !labels.IsBridgeProgram(e.ToAddress) || seen[e.FromAddress] {
			continue
		}
		seen[e.FromAddress] = true

		exit, ok := t.queryBridgeAttestation(ctx, e.FromAddress)
		if ok {
			exits = append(exits, exit)
		}
	}
	return exits
}

type wormholeOperationsResponse struct {
	Operations []struct {
		Content struct {
			StandarizedProperties struct {
				ToChain   interface{} `json:"toChain"`
				ToAddress string      `json:"toAddress"`
			} `json:"standarizedProperties"`
		} `json:"content"`
	} `json:"operations"`
}

// queryBridgeAttestation calls GET /operations?address=<wallet>&limit=10,
// never raising - a failed or empty lookup just yields ok=false.
func (t *Tracer) queryBridgeAttestation(ctx context.Context, wallet string) (models.CrossChainExit, bool) {
	u := fmt.Sprintf("%s/operations?address=%s&limit=10", t.bridgeBase, url.QueryEscape(wallet))
	var resp wormholeOperationsResponse
	if err := t.bridge.GetJSON(ctx, u, &resp, true); err != nil {
		return models.CrossChainExit{}, false
	}
	if len(resp.Operations) == 0 {
		return models.CrossChainExit{}, false
	}
	props := resp.Operations[0].Content.StandarizedProperties
	if props.ToAddress == "" {
		return models.CrossChainExit{}, false
	}
	return models.CrossChainExit{
		Wallet:    wallet,
		ToChain:   fmt.Sprintf("%v", props.ToChain),
		ToAddress: props.ToAddress,
	}, true
}
