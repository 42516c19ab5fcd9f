package forensic

import (
	"regexp"
	"strings"
	"time"

	"github.com/lineage-agent/forensics/internal/models"
)

const minFactorySamples = 3

var incrementalNameRe = regexp.MustCompile(`^(.*?)\s*#?\s*(\d+)\s*$`)

// FactoryRhythm captures a deployer's cadence of token launches from at
// least three prior creation timestamps, naming conventions, and market
// cap history.
func FactoryRhythm(names []string, createdAt []time.Time, mcapUSD []float64) *models.FactoryRhythm {
	if len(createdAt) < minFactorySamples {
		return nil
	}
	sorted := append([]time.Time(nil), createdAt...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Before(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var intervals []float64
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, sorted[i].Sub(sorted[i-1]).Hours())
	}
	medianInterval := median(intervals)
	if medianInterval <= 0 {
		return nil
	}
	regularity := clamp01(1 - stdev(intervals)/medianInterval)

	pattern := classifyNamingPattern(names)
	incrementalBonus := 0.0
	if pattern == models.NamingIncremental {
		incrementalBonus = 1.0
	}

	mcapConsistency := 0.0
	if len(mcapUSD) >= 2 {
		m := mean(mcapUSD)
		if m > 0 {
			mcapConsistency = clamp01(1 - stdev(mcapUSD)/m)
		}
	}

	score := 0.55*regularity + 0.30*incrementalBonus + 0.15*mcapConsistency

	return &models.FactoryRhythm{
		MedianIntervalHours: medianInterval,
		Regularity:          regularity,
		NamingPattern:       pattern,
		FactoryScore:        score,
		IsFactory:           score >= 0.65,
	}
}

// classifyNamingPattern inspects a deployer's token names for an
// incrementing numeric suffix sharing a common stem ("Pepe 1", "Pepe 2"),
// a shared thematic prefix without strict incrementing, or neither.
func classifyNamingPattern(names []string) models.NamingPattern {
	if len(names) < minFactorySamples {
		return models.NamingRandom
	}

	stems := make(map[string]int)
	incrementing := 0
	for _, n := range names {
		if m := incrementalNameRe.FindStringSubmatch(strings.TrimSpace(n)); m != nil {
			stems[strings.ToLower(strings.TrimSpace(m[1]))]++
			incrementing++
		}
	}
	if incrementing >= (len(names)*2)/3 {
		for _, count := range stems {
			if count >= (len(names)*2)/3 {
				return models.NamingIncremental
			}
		}
	}

	prefix := longestCommonPrefix(names)
	if len(prefix) >= 3 {
		return models.NamingThemed
	}
	return models.NamingRandom
}

func longestCommonPrefix(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	prefix := strings.ToLower(ss[0])
	for _, s := range ss[1:] {
		s = strings.ToLower(s)
		i := 0
		for i < len(prefix) && i < len(s) && prefix[i] == s[i] {
			i++
		}
		prefix = prefix[:i]
		if prefix == "" {
			break
		}
	}
	return prefix
}
