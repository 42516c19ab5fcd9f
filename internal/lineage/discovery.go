package lineage

import (
	"context"

	"github.com/lineage-agent/forensics/internal/market"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/similarity"
)

// discoverCandidates searches the DEX aggregator by query's name and
// symbol, dedupes the results to distinct Solana mints excluding query
// itself, then keeps only the ones whose name or symbol passes the cheap
// similarity pre-filter, capped at twice the family size the engine keeps.
func (e *Engine) discoverCandidates(ctx context.Context, query node) []models.TokenMetadata {
	seen := map[string]bool{query.meta.Mint: true}
	var pool []market.Pair

	for _, term := range []string{query.meta.Name, query.meta.Symbol} {
		if term == "" {
			continue
		}
		pairs, err := e.market.SearchPairs(ctx, term)
		if err != nil {
			continue
		}
		for _, p := range market.SolanaPairs(pairs) {
			mint := p.BaseToken.Address
			if mint == "" || seen[mint] {
				continue
			}
			seen[mint] = true
			pool = append(pool, p)
		}
	}

	maxCandidates := e.cfg.MaxDerivatives * 2
	var survivors []models.TokenMetadata
	for _, p := range pool {
		if len(survivors) >= maxCandidates {
			break
		}
		nameScore := similarity.NameScore(query.meta.Name, p.BaseToken.Name)
		symbolScore := similarity.SymbolScore(query.meta.Symbol, p.BaseToken.Symbol)
		if nameScore < e.cfg.NameSimilarityThreshold && symbolScore < e.cfg.NameSimilarityThreshold {
			continue
		}
		var meta models.TokenMetadata
		meta.Mint = p.BaseToken.Address
		applyPair(&meta, &p)
		survivors = append(survivors, meta)
	}
	return survivors
}
