package forensic

import (
	"time"

	"github.com/lineage-agent/forensics/internal/models"
)

const minDeathClockSamples = 2

// DeathClock estimates a running token's remaining lifespan from the
// deployer's history of completed (created_at, rugged_at) pairs. It
// requires at least two prior rugs to compute a median/stdev baseline;
// otherwise it returns nil rather than a degenerate estimate.
func DeathClock(history []models.TokenEvent, currentCreatedAt time.Time, now time.Time) *models.DeathClock {
	var lifespans []float64
	for _, ev := range history {
		if ev.RuggedAt == nil || ev.CreatedAt.IsZero() {
			continue
		}
		hours := ev.RuggedAt.Sub(ev.CreatedAt).Hours()
		if hours <= 0 {
			continue
		}
		lifespans = append(lifespans, hours)
	}
	if len(lifespans) < minDeathClockSamples {
		return nil
	}

	med := median(lifespans)
	if med <= 0 {
		return nil
	}
	sd := stdev(lifespans)
	elapsed := now.Sub(currentCreatedAt).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := elapsed / med

	var severity models.DeathClockSeverity
	switch {
	case ratio < 0.5:
		severity = models.DeathClockLow
	case ratio < 0.8:
		severity = models.DeathClockMedium
	case ratio < 1.0:
		severity = models.DeathClockHigh
	default:
		severity = models.DeathClockCritical
	}

	return &models.DeathClock{
		MedianLifespanHours: med,
		StdevLifespanHours:  sd,
		ElapsedHours:        elapsed,
		Ratio:               ratio,
		Severity:            severity,
	}
}
