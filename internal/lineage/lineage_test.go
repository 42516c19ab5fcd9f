package lineage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/similarity"
)

func liq(v float64) *float64 { return &v }

func TestSelectRootPicksEarliestCreatedAt(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	family := []node{
		{meta: models.TokenMetadata{Mint: "Clone", CreatedAt: t0.Add(time.Hour), LiquidityUSD: liq(100)}},
		{meta: models.TokenMetadata{Mint: "Root", CreatedAt: t0, LiquidityUSD: liq(10)}},
	}
	root := selectRoot(family)
	assert.Equal(t, "Root", root.meta.Mint)
}

func TestSelectRootTieBreaksOnLiquidity(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	family := []node{
		{meta: models.TokenMetadata{Mint: "Low", CreatedAt: t0, LiquidityUSD: liq(10)}},
		{meta: models.TokenMetadata{Mint: "High", CreatedAt: t0, LiquidityUSD: liq(500)}},
	}
	root := selectRoot(family)
	assert.Equal(t, "High", root.meta.Mint)
}

func TestScorePairIdenticalNamesHighComposite(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	root := node{meta: models.TokenMetadata{Name: "Wif Hat", Symbol: "WIF", Deployer: "Dep", CreatedAt: t0}}
	candidate := node{meta: models.TokenMetadata{Name: "Wif Hat", Symbol: "WIF", Deployer: "Dep", CreatedAt: t0.Add(time.Minute)}}

	evidence, composite := scorePair(similarity.DefaultWeights, root, candidate)
	assert.Equal(t, 1.0, evidence.NameScore)
	assert.Equal(t, 1.0, evidence.DeployerScore)
	assert.Greater(t, composite, 0.8)
}

func TestConfidenceNoDerivatives(t *testing.T) {
	root := node{meta: models.TokenMetadata{LiquidityUSD: liq(100)}}
	assert.Equal(t, 0.0, confidence(root, nil))
}

func TestConfidenceWeightsTemporalLiquidityAmbiguity(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	root := node{meta: models.TokenMetadata{CreatedAt: t0, LiquidityUSD: liq(900)}}
	derivatives := []node{
		{meta: models.TokenMetadata{CreatedAt: t0.Add(time.Hour), LiquidityUSD: liq(100)}, composite: 0.5},
	}
	c := confidence(root, derivatives)
	assert.InDelta(t, 0.4*1.0+0.35*0.9+0.25*1.0, c, 1e-9)
}
