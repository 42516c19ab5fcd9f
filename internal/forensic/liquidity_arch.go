package forensic

import "github.com/lineage-agent/forensics/internal/models"

const (
	criticalLowVolumeRatio = 200.0
	lowVolumeHighLiqRatio  = 50.0
	extremeRatioThreshold  = 500.0
	zeroVolumeLiqFloor     = 100.0
	fragmentationHHICeil   = 0.5
	fragmentationMinPools  = 3
)

// PoolStat is the liquidity/volume pair for a single DEX pool backing a mint.
type PoolStat struct {
	LiquidityUSD float64
	VolumeUSD    float64
}

// LiquidityArchitecture scores pool concentration and authenticity across
// every known pool for a mint. Returns nil when there's no liquidity to
// assess at all.
func LiquidityArchitecture(pools []PoolStat) *models.LiquidityArchitecture {
	var totalLiq, totalVol float64
	for _, p := range pools {
		totalLiq += p.LiquidityUSD
		totalVol += p.VolumeUSD
	}
	if totalLiq <= 0 {
		return nil
	}

	var hhi float64
	for _, p := range pools {
		share := p.LiquidityUSD / totalLiq
		hhi += share * share
	}

	var flags []string
	penalty := 0.0

	switch {
	case totalVol == 0 && totalLiq > zeroVolumeLiqFloor:
		flags = append(flags, "ZERO_VOLUME_WITH_LIQUIDITY")
		penalty += 0.20
	case totalVol > 0:
		ratio := totalLiq / totalVol
		switch {
		case ratio > criticalLowVolumeRatio:
			flags = append(flags, "CRITICAL_LOW_VOLUME")
			penalty += 0.45
		case ratio > lowVolumeHighLiqRatio:
			flags = append(flags, "LOW_VOLUME_HIGH_LIQ")
			penalty += 0.35
		}
		if ratio > extremeRatioThreshold {
			flags = append(flags, "EXTREME_LIQ_VOLUME_RATIO")
			penalty += 0.15
		}
	}

	if len(pools) >= fragmentationMinPools && hhi < fragmentationHHICeil {
		flags = append(flags, "FRAGMENTED_LIQUIDITY")
		penalty += 0.15
	}

	if len(pools) == 1 && totalVol == 0 {
		flags = append(flags, "POSSIBLE_DEPLOYER_LP_ONLY")
	}

	var liqVolumeRatio float64
	if totalVol > 0 {
		liqVolumeRatio = totalLiq / totalVol
	}

	return &models.LiquidityArchitecture{
		HHI:               hhi,
		LiqVolumeRatio:    liqVolumeRatio,
		AuthenticityScore: clamp01(1.0 - penalty),
		Flags:             flags,
	}
}
