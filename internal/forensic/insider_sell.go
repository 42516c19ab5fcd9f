package forensic

import "github.com/lineage-agent/forensics/internal/models"

const (
	sellPressureSuspicious = 0.55
	sellPressureElevated   = 0.65
	priceCrashSuspicious   = -30.0
	priceCrashSevere       = -50.0
	volumeSpikeThreshold   = 3.0
)

// InsiderSellInputs are the aggregated DEX-aggregator and on-chain signals
// InsiderSell needs. SellPressure is sells/(buys+sells) over the analysis
// window; PriceChangePct is the aggregator's percent price change over the
// same window; VolumeSpikeRatio is current volume over its recent average;
// DeployerExited reports whether the deployer (or a linked wallet) now
// holds zero of a mint it previously held.
type InsiderSellInputs struct {
	SellPressure     float64
	PriceChangePct   float64
	VolumeSpikeRatio float64
	DeployerExited   bool
}

// InsiderSell flags deployer/linked-wallet dumping behavior from DEX
// aggregator activity plus an on-chain exit check.
func InsiderSell(in InsiderSellInputs) *models.InsiderSellReport {
	var flags []string
	severe := false

	switch {
	case in.SellPressure >= sellPressureElevated:
		flags = append(flags, "HIGH_SELL_PRESSURE")
		severe = true
	case in.SellPressure >= sellPressureSuspicious:
		flags = append(flags, "ELEVATED_SELL_PRESSURE")
	}

	switch {
	case in.PriceChangePct <= priceCrashSevere:
		flags = append(flags, "PRICE_CRASH")
		severe = true
	case in.PriceChangePct <= priceCrashSuspicious:
		flags = append(flags, "PRICE_DECLINING")
	}

	if in.VolumeSpikeRatio >= volumeSpikeThreshold {
		flags = append(flags, "SELL_BURST")
		severe = true
	}

	if in.DeployerExited {
		flags = append(flags, "DEPLOYER_EXITED")
	}

	sellPressureComponent := clamp01(in.SellPressure) * 0.35
	priceDropComponent := 0.0
	if in.PriceChangePct < 0 {
		priceDropComponent = clamp01(-in.PriceChangePct/50.0) * 0.30
	}
	volumeSpikeComponent := in.VolumeSpikeRatio * 0.05
	if volumeSpikeComponent > 0.15 {
		volumeSpikeComponent = 0.15
	}
	deployerExitComponent := -0.10
	if in.DeployerExited {
		deployerExitComponent = 0.20
	}

	risk := clamp01(sellPressureComponent + priceDropComponent + volumeSpikeComponent + deployerExitComponent)

	insiderDumpConfirmed := in.DeployerExited && (in.SellPressure >= sellPressureElevated || in.PriceChangePct <= priceCrashSuspicious)

	var verdict models.InsiderVerdict
	switch {
	case insiderDumpConfirmed:
		verdict = models.InsiderDump
	case risk >= 0.45 || severe:
		verdict = models.InsiderSuspicious
	default:
		verdict = models.InsiderClean
	}

	return &models.InsiderSellReport{
		Flags:     flags,
		RiskScore: risk,
		Verdict:   verdict,
	}
}
