package forensic

import (
	"time"

	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/models"
)

const deadTokenAgeHours = 24.0

// IsDead reports whether a token with liquidityUSD and age in hours should
// be treated as dead: liquidity under the configured threshold and at
// least 24 hours old. Exactly 24 hours counts as dead; 23.9 does not.
func IsDead(liquidityUSD, ageHours float64) bool {
	return liquidityUSD < labels.DeadLiquidityUSD && ageHours >= deadTokenAgeHours
}

// ZombieCandidate is the subset of a lineage family member's state the
// zombie scan needs.
type ZombieCandidate struct {
	Mint         string
	Deployer     string
	LiquidityUSD float64
	CreatedAt    time.Time
}

// zombieConfidence returns the zombie confidence tier for a dead/live
// pairing, or "" if the pairing doesn't clear any tier's bar.
func zombieConfidence(sameDeployer bool, imageScore float64) models.ZombieConfidence {
	switch {
	case sameDeployer && imageScore >= 0.72:
		return models.ZombieConfirmed
	case !sameDeployer && imageScore >= 0.92:
		return models.ZombieProbable
	case imageScore >= 0.80:
		return models.ZombiePossible
	default:
		return ""
	}
}

var zombieConfidenceRank = map[models.ZombieConfidence]int{
	models.ZombieConfirmed: 3,
	models.ZombieProbable:  2,
	models.ZombiePossible:  1,
}

// ScanZombies checks every live candidate against every dead candidate in
// a lineage family (imageScore supplies the pairwise perceptual-hash
// similarity) and returns the highest-confidence match, or nil if no
// pairing clears a confidence tier.
func ScanZombies(candidates []ZombieCandidate, now time.Time, imageScore func(deadMint, liveMint string) float64) *models.ZombieAlert {
	var best *models.ZombieAlert
	for _, dead := range candidates {
		ageHours := now.Sub(dead.CreatedAt).Hours()
		if !IsDead(dead.LiquidityUSD, ageHours) {
			continue
		}
		for _, live := range candidates {
			if live.Mint == dead.Mint {
				continue
			}
			liveAge := now.Sub(live.CreatedAt).Hours()
			if IsDead(live.LiquidityUSD, liveAge) {
				continue // both dead: no resurrection
			}
			score := imageScore(dead.Mint, live.Mint)
			sameDeployer := dead.Deployer != "" && dead.Deployer == live.Deployer
			tier := zombieConfidence(sameDeployer, score)
			if tier == "" {
				continue
			}
			if best == nil || zombieConfidenceRank[tier] > zombieConfidenceRank[best.Confidence] {
				best = &models.ZombieAlert{
					DeadMint:         dead.Mint,
					ResurrectionMint: live.Mint,
					SameDeployer:     sameDeployer,
					ImageScore:       score,
					Confidence:       tier,
				}
			}
		}
	}
	return best
}
