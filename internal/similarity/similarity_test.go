package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameScoreIdentical(t *testing.T) {
	assert.Equal(t, 1.0, NameScore("Pepe Coin", "pepe coin"))
}

func TestNameScoreCompletelyDifferent(t *testing.T) {
	score := NameScore("abc", "xyz")
	assert.Less(t, score, 0.5)
}

func TestNameScoreBothEmpty(t *testing.T) {
	assert.Equal(t, 0.0, NameScore("", ""))
}

func TestImageScoreIdenticalHashes(t *testing.T) {
	assert.Equal(t, 1.0, ImageScore(0xABCD1234, 0xABCD1234))
}

func TestImageScoreThresholdAt8Bits(t *testing.T) {
	// flipping 8 of 64 bits -> score = 1 - 8/64 = 0.875
	a := uint64(0)
	b := uint64(0xFF) // 8 low bits differ
	assert.InDelta(t, 0.875, ImageScore(a, b), 1e-9)
}

func TestDeployerScoreExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, DeployerScore("wallet1", "wallet1", false))
}

func TestDeployerScoreFingerprintPartialCredit(t *testing.T) {
	assert.Equal(t, 0.8, DeployerScore("walletA", "walletB", true))
}

func TestDeployerScoreNoMatch(t *testing.T) {
	assert.Equal(t, 0.0, DeployerScore("walletA", "walletB", false))
}

func TestTemporalScoreDecaysToZero(t *testing.T) {
	assert.Equal(t, 1.0, TemporalScore(0))
	assert.Equal(t, 0.0, TemporalScore(31*24*3600))
}

func TestCompositeWeightedSum(t *testing.T) {
	w := Weights{Name: 0.5, Symbol: 0.5}
	got := Composite(w, 1.0, 0.0, 0, 0, 0)
	assert.Equal(t, 0.5, got)
}
