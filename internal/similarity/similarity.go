// Package similarity scores how closely a candidate token resembles a
// query token along five dimensions (name, symbol, image, deployer,
// temporal) and combines them into a composite score. Despite spec.md §1
// listing similarity scoring as an out-of-scope external collaborator,
// §2's component table and §4.4's algorithm treat it as a first-class,
// 4%-share in-scope component with a concrete weighted-sum contract — we
// build it as such, per SPEC_FULL.md's module map.
package similarity

import (
	"math"
	"strings"
)

// Weights configures the composite score's per-dimension contribution.
type Weights struct {
	Name     float64
	Symbol   float64
	Image    float64
	Deployer float64
	Temporal float64
}

// DefaultWeights matches internal/config's default env values.
var DefaultWeights = Weights{Name: 0.25, Symbol: 0.20, Image: 0.20, Deployer: 0.20, Temporal: 0.15}

// NameScore computes normalized Levenshtein similarity between two names,
// case-insensitive, trimmed.
func NameScore(a, b string) float64 {
	return stringSimilarity(normalize(a), normalize(b))
}

// SymbolScore computes normalized Levenshtein similarity between two
// ticker symbols, case-insensitive.
func SymbolScore(a, b string) float64 {
	return stringSimilarity(normalize(a), normalize(b))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// stringSimilarity returns 1 - (levenshtein distance / max length), in [0,1].
// Two empty strings are defined as dissimilar (0), not identical, since an
// empty name carries no identity signal to match on.
func stringSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// ImageScore computes 1 - hamming(a,b)/64 for two 64-bit perceptual
// hashes, clamped to [0,1]. Hashes are hex-encoded 16-char strings.
func ImageScore(phashA, phashB uint64) float64 {
	d := hammingDistance(phashA, phashB)
	score := 1 - float64(d)/64.0
	if score < 0 {
		score = 0
	}
	return score
}

func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count += int(x & 1)
		x >>= 1
	}
	return count
}

// DeployerScore returns 1.0 for an identical deployer address, 0.8 when
// the two deployers share an operator-DNA fingerprint (partial credit per
// §4.4 step 5), else 0.
func DeployerScore(a, b string, sameFingerprint bool) float64 {
	if a != "" && a == b {
		return 1.0
	}
	if sameFingerprint {
		return 0.8
	}
	return 0
}

// TemporalScore scores how close two creation timestamps are, decaying
// linearly to 0 over a 30-day horizon — tokens created within minutes of
// each other are near-1, a month apart is near-0.
func TemporalScore(deltaSeconds float64) float64 {
	const horizonSeconds = 30 * 24 * 3600.0
	d := math.Abs(deltaSeconds)
	score := 1 - d/horizonSeconds
	if score < 0 {
		score = 0
	}
	return score
}

// Composite combines the five dimension scores using w, matching §4.4
// step 5's "composite score" without fixing which exact linear formula
// the upstream evidence struct uses — callers that need the confidence
// formula specifically (0.4 temporal + 0.35 liquidity + 0.25 ambiguity)
// use lineage.Confidence instead; this is the per-candidate composite.
func Composite(w Weights, name, symbol, image, deployer, temporal float64) float64 {
	sum := w.Name + w.Symbol + w.Image + w.Deployer + w.Temporal
	if sum == 0 {
		return 0
	}
	return (w.Name*name + w.Symbol*symbol + w.Image*image + w.Deployer*deployer + w.Temporal*temporal) / sum
}
