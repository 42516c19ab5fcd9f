package forensic

import (
	"sort"

	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
)

// OnChainRisk scores holder concentration from the largest on-chain token
// accounts for a mint. Solana's getTokenLargestAccounts caps at 20 entries
// and carries no owner field, so top10/top1 percentages are expressed as a
// share of the visible top-20 supply rather than true circulating supply,
// and deployerBalance (resolved separately via GetWalletTokenBalance) is
// compared against that same visible-supply denominator. The resulting
// score is a best-effort concentration signal, not an exact holder audit.
func OnChainRisk(largest []rpcclient.LargestAccount, deployerBalance float64) *models.OnChainRisk {
	if len(largest) == 0 {
		return nil
	}
	sorted := append([]rpcclient.LargestAccount(nil), largest...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UiAmount > sorted[j].UiAmount })

	var totalVisible float64
	for _, a := range sorted {
		totalVisible += a.UiAmount
	}
	if totalVisible <= 0 {
		return nil
	}

	top10Count := 10
	if top10Count > len(sorted) {
		top10Count = len(sorted)
	}
	var top10Sum float64
	for _, a := range sorted[:top10Count] {
		top10Sum += a.UiAmount
	}
	top10Pct := top10Sum / totalVisible * 100
	top1Pct := sorted[0].UiAmount / totalVisible * 100
	deployerPct := deployerBalance / totalVisible * 100

	var flags []string
	if top10Pct > 90 {
		flags = append(flags, "EXTREME_CONCENTRATION")
	} else if top10Pct > 70 {
		flags = append(flags, "TOP10_CONCENTRATED")
	}
	if top1Pct > 30 {
		flags = append(flags, "TOP1_CONCENTRATED")
	}
	if deployerPct > 20 {
		flags = append(flags, "DEPLOYER_HOLDS_SIGNIFICANT")
	}

	score := clamp01(top10Pct*0.004)*40 + clamp01(top1Pct*0.0233)*35 + clamp01(deployerPct*0.05)*25
	if score > 100 {
		score = 100
	}

	return &models.OnChainRisk{
		Top10Pct:    top10Pct,
		Top1Pct:     top1Pct,
		DeployerPct: deployerPct,
		RiskScore:   score,
		Flags:       flags,
	}
}
