package forensic

import "github.com/lineage-agent/forensics/internal/models"

// ExtractionRateTier returns the estimated fraction of a rugged token's
// peak market cap that its operator extracted, tiered by how small the
// token was (smaller tokens are rugged faster and more completely). A nil
// or non-positive peak market cap falls back to the middle tier.
func ExtractionRateTier(peakMcapUSD *float64) float64 {
	if peakMcapUSD == nil || *peakMcapUSD <= 0 {
		return 0.15
	}
	m := *peakMcapUSD
	switch {
	case m < 5_000:
		return 0.40
	case m < 50_000:
		return 0.30
	case m < 500_000:
		return 0.15
	default:
		return 0.08
	}
}

// OperatorImpact aggregates the estimated USD extracted across every rug
// attributed to an operator (deployers sharing an off-chain DNA
// fingerprint), returning nil when the operator has no recorded rugs.
func OperatorImpact(ruggedPeakMcapUSD []*float64) *models.OperatorImpact {
	if len(ruggedPeakMcapUSD) == 0 {
		return nil
	}
	var extracted float64
	for _, m := range ruggedPeakMcapUSD {
		if m == nil {
			continue
		}
		extracted += *m * ExtractionRateTier(m)
	}
	return &models.OperatorImpact{
		TotalRugs:             len(ruggedPeakMcapUSD),
		EstimatedExtractedUSD: extracted,
	}
}
