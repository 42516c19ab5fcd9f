package forensic

import (
	"sort"
	"strings"
	"time"

	"github.com/lineage-agent/forensics/internal/models"
)

const (
	minNarrativeSamples = 10
	narrativeLookback    = 90 * 24 * time.Hour
	narrativeWindow      = 7 * 24 * time.Hour
)

// narrativeTaxonomy maps a coarse category to the keywords that identify
// it in a token's name or symbol. Checked in declaration order so more
// specific categories (e.g. "ai") win over generic ones ("meme").
var narrativeTaxonomy = []struct {
	category string
	keywords []string
}{
	{"ai", []string{"ai", "gpt", "agent", "neural", "llm"}},
	{"political", []string{"trump", "biden", "election", "maga", "president"}},
	{"animal", []string{"dog", "cat", "pepe", "frog", "shiba", "inu", "doge", "monkey", "ape"}},
	{"celebrity", []string{"elon", "musk", "kanye", "taylor"}},
	{"finance", []string{"moon", "pump", "gem", "100x", "rocket"}},
	{"meme", []string{"meme", "wojak", "chad", "based"}},
}

// ClassifyNarrative assigns name/symbol to the first matching taxonomy
// category, or "other" when nothing matches.
func ClassifyNarrative(name, symbol string) string {
	haystack := strings.ToLower(name + " " + symbol)
	for _, cat := range narrativeTaxonomy {
		for _, kw := range cat.keywords {
			if strings.Contains(haystack, kw) {
				return cat.category
			}
		}
	}
	return "other"
}

// NarrativeTiming places a token within its narrative category's hype
// cycle. creationTimes is every creation timestamp observed for the same
// narrative; it must hold at least minNarrativeSamples entries within the
// 90-day lookback window, else this returns nil.
func NarrativeTiming(creationTimes []time.Time, currentCreatedAt, now time.Time) *models.NarrativeTiming {
	cutoff := now.Add(-narrativeLookback)
	var inWindow []time.Time
	for _, t := range creationTimes {
		if t.After(cutoff) {
			inWindow = append(inWindow, t)
		}
	}
	if len(inWindow) < minNarrativeSamples {
		return nil
	}
	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Before(inWindow[j]) })

	total := len(inWindow)
	tokensBefore := 0
	for _, t := range inWindow {
		if t.Before(currentCreatedAt) {
			tokensBefore++
		}
	}
	cyclePercentile := float64(tokensBefore) / float64(total)

	peakWindowCount := slidingWindowMax(inWindow, narrativeWindow)
	recentCount := countSince(inWindow, now.Add(-narrativeWindow))

	momentum := 0.0
	if peakWindowCount > 0 {
		momentum = float64(recentCount) / float64(peakWindowCount)
	}

	var status models.NarrativeStatus
	switch {
	case cyclePercentile < 0.20:
		status = models.NarrativeEarly
	case cyclePercentile < 0.50:
		status = models.NarrativeRising
	case cyclePercentile < 0.75:
		status = models.NarrativePeak
	default:
		status = models.NarrativeLate
	}

	return &models.NarrativeTiming{
		CyclePercentile: cyclePercentile,
		PeakWindowCount: peakWindowCount,
		Momentum:        momentum,
		Status:          status,
	}
}

// slidingWindowMax returns the largest number of timestamps (sorted
// ascending) that fall within any contiguous span, using a two-pointer scan.
func slidingWindowMax(sorted []time.Time, span time.Duration) int {
	best := 0
	left := 0
	for right := 0; right < len(sorted); right++ {
		for sorted[right].Sub(sorted[left]) > span {
			left++
		}
		if count := right - left + 1; count > best {
			best = count
		}
	}
	return best
}

func countSince(sorted []time.Time, cutoff time.Time) int {
	count := 0
	for _, t := range sorted {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}
