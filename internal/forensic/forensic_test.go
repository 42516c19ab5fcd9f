package forensic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
)

func TestExtractionRateTierBoundaries(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	assert.Equal(t, 0.40, ExtractionRateTier(f(4999)))
	assert.Equal(t, 0.30, ExtractionRateTier(f(5000)))
	assert.Equal(t, 0.30, ExtractionRateTier(f(49999)))
	assert.Equal(t, 0.15, ExtractionRateTier(f(50000)))
	assert.Equal(t, 0.15, ExtractionRateTier(f(499999)))
	assert.Equal(t, 0.08, ExtractionRateTier(f(500000)))
	assert.Equal(t, 0.15, ExtractionRateTier(nil))
}

func TestIsDeadBoundary(t *testing.T) {
	assert.True(t, IsDead(50, 24.0))
	assert.False(t, IsDead(50, 23.9))
	assert.False(t, IsDead(200, 48))
}

func TestDeathClockSeverityTiers(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	base := now.Add(-240 * time.Hour)
	history := []models.TokenEvent{
		{CreatedAt: base, RuggedAt: timePtr(base.Add(100 * time.Hour))},
		{CreatedAt: base, RuggedAt: timePtr(base.Add(100 * time.Hour))},
	}
	currentCreated := now.Add(-40 * time.Hour) // ratio 0.4 -> low
	dc := DeathClock(history, currentCreated, now)
	require.NotNil(t, dc)
	assert.Equal(t, models.DeathClockLow, dc.Severity)

	currentCreated2 := now.Add(-110 * time.Hour) // ratio 1.1 -> critical
	dc2 := DeathClock(history, currentCreated2, now)
	require.NotNil(t, dc2)
	assert.Equal(t, models.DeathClockCritical, dc2.Severity)
}

func TestDeathClockInsufficientSamples(t *testing.T) {
	dc := DeathClock(nil, time.Now(), time.Now())
	assert.Nil(t, dc)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestFactoryRhythmIncrementalNaming(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"Pepe 1", "Pepe 2", "Pepe 3"}
	created := []time.Time{base, base.Add(24 * time.Hour), base.Add(48 * time.Hour)}
	mcaps := []float64{10000, 10500, 9800}

	fr := FactoryRhythm(names, created, mcaps)
	require.NotNil(t, fr)
	assert.Equal(t, models.NamingIncremental, fr.NamingPattern)
	assert.True(t, fr.Regularity > 0.9)
}

func TestFactoryRhythmInsufficientSamples(t *testing.T) {
	assert.Nil(t, FactoryRhythm(nil, []time.Time{time.Now(), time.Now()}, nil))
}

func TestNarrativeTimingRequiresMinSamples(t *testing.T) {
	now := time.Now().UTC()
	var few []time.Time
	for i := 0; i < 5; i++ {
		few = append(few, now.Add(-time.Duration(i)*24*time.Hour))
	}
	assert.Nil(t, NarrativeTiming(few, now, now))
}

func TestNarrativeTimingStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var times []time.Time
	for i := 0; i < 20; i++ {
		times = append(times, now.Add(-time.Duration(80-i*4)*24*time.Hour))
	}
	current := times[1] // very early in the sequence
	nt := NarrativeTiming(times, current, now)
	require.NotNil(t, nt)
	assert.Equal(t, models.NarrativeEarly, nt.Status)
}

func TestClassifyNarrative(t *testing.T) {
	assert.Equal(t, "animal", ClassifyNarrative("Pepe Classic", "PEPEC"))
	assert.Equal(t, "ai", ClassifyNarrative("AI Agent Coin", "AIAC"))
	assert.Equal(t, "other", ClassifyNarrative("Xyzzy Token", "XYZ"))
}

func TestScanZombiesConfirmed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []ZombieCandidate{
		{Mint: "T1", Deployer: "D", LiquidityUSD: 5, CreatedAt: now.Add(-72 * time.Hour)},
		{Mint: "T2", Deployer: "D", LiquidityUSD: 30000, CreatedAt: now.Add(-4 * time.Hour)},
	}
	alert := ScanZombies(candidates, now, func(dead, live string) float64 { return 0.95 })
	require.NotNil(t, alert)
	assert.Equal(t, models.ZombieConfirmed, alert.Confidence)
	assert.Equal(t, "T2", alert.ResurrectionMint)
	assert.True(t, alert.SameDeployer)
}

func TestInsiderSellVerdicts(t *testing.T) {
	confirmed := InsiderSell(InsiderSellInputs{SellPressure: 0.8, PriceChangePct: -60, DeployerExited: true})
	assert.Equal(t, models.InsiderDump, confirmed.Verdict)

	clean := InsiderSell(InsiderSellInputs{SellPressure: 0.1, PriceChangePct: 2, VolumeSpikeRatio: 1.0})
	assert.Equal(t, models.InsiderClean, clean.Verdict)
}

func TestLiquidityArchitectureCriticalLowVolume(t *testing.T) {
	arch := LiquidityArchitecture([]PoolStat{{LiquidityUSD: 50000, VolumeUSD: 100}})
	require.NotNil(t, arch)
	assert.Contains(t, arch.Flags, "CRITICAL_LOW_VOLUME")
	assert.Less(t, arch.AuthenticityScore, 1.0)
}

func TestLiquidityArchitectureFragmentation(t *testing.T) {
	arch := LiquidityArchitecture([]PoolStat{
		{LiquidityUSD: 1000, VolumeUSD: 500},
		{LiquidityUSD: 1000, VolumeUSD: 500},
		{LiquidityUSD: 1000, VolumeUSD: 500},
	})
	require.NotNil(t, arch)
	assert.Contains(t, arch.Flags, "FRAGMENTED_LIQUIDITY")
}

func TestOnChainRiskConcentration(t *testing.T) {
	largest := []rpcclient.LargestAccount{
		{Address: "a1", UiAmount: 900000},
		{Address: "a2", UiAmount: 50000},
		{Address: "a3", UiAmount: 50000},
	}
	risk := OnChainRisk(largest, 0)
	require.NotNil(t, risk)
	assert.Contains(t, risk.Flags, "EXTREME_CONCENTRATION")
	assert.Contains(t, risk.Flags, "TOP1_CONCENTRATED")
}

func TestOperatorImpactAggregatesExtraction(t *testing.T) {
	m1, m2 := 4000.0, 40000.0
	impact := OperatorImpact([]*float64{&m1, &m2})
	require.NotNil(t, impact)
	assert.Equal(t, 2, impact.TotalRugs)
	assert.InDelta(t, 4000*0.40+40000*0.30, impact.EstimatedExtractedUSD, 1e-9)
}
