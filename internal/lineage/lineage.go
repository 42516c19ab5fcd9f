// Package lineage implements analyze(mint)'s family-tree engine: search the
// DEX aggregator for tokens resembling a mint by name or symbol, score each
// survivor's deployer, image, and timing similarity against the rest of the
// family, and pick the earliest-launched member as the root clone.
package lineage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/market"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
	"github.com/lineage-agent/forensics/internal/similarity"
	"github.com/lineage-agent/forensics/internal/store"
)

// Config tunes the engine's fan-out and thresholds.
type Config struct {
	MaxDerivatives     int // family size kept after scoring, e.g. 20
	EnrichConcurrency  int64
	NameSimilarityThreshold float64
	Weights            similarity.Weights
	CacheTTL           time.Duration
}

// DefaultConfig matches spec.md's documented bounds.
func DefaultConfig() Config {
	return Config{
		MaxDerivatives:          20,
		EnrichConcurrency:       5,
		NameSimilarityThreshold: 0.82,
		Weights:                 similarity.DefaultWeights,
		CacheTTL:                24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxDerivatives <= 0 {
		c.MaxDerivatives = def.MaxDerivatives
	}
	if c.EnrichConcurrency <= 0 {
		c.EnrichConcurrency = def.EnrichConcurrency
	}
	if c.NameSimilarityThreshold <= 0 {
		c.NameSimilarityThreshold = def.NameSimilarityThreshold
	}
	if c.Weights == (similarity.Weights{}) {
		c.Weights = def.Weights
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	return c
}

// Engine runs the lineage pipeline for a single mint.
type Engine struct {
	market *market.Client
	rpc    *rpcclient.Client
	images *httpshell.Client
	meta   *httpshell.Client
	store  *store.Store
	cfg    Config
}

// New builds an Engine. images fetches token art for perceptual hashing,
// meta fetches off-chain JSON metadata for operator-DNA fingerprinting.
func New(mkt *market.Client, rpc *rpcclient.Client, images, meta *httpshell.Client, st *store.Store, cfg Config) *Engine {
	return &Engine{market: mkt, rpc: rpc, images: images, meta: meta, store: st, cfg: cfg.withDefaults()}
}

func cacheKey(mint string) string { return "lineage:" + mint }

// Analyze builds the lineage family for mint: the query token plus every
// DEX-discovered candidate whose name or symbol resembles it closely
// enough to enrich, rooted at whichever family member launched first.
// Candidate enrichment failures are swallowed; Analyze itself never fails
// on missing market data, only on a nil store or malformed cache.
func (e *Engine) Analyze(ctx context.Context, mint string) (*models.LineageResult, error) {
	if cached, ok, err := e.store.CacheGet(cacheKey(mint)); err == nil && ok {
		var result models.LineageResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return &result, nil
		}
	}

	queryNode := e.buildQueryNode(ctx, mint)

	candidates := e.discoverCandidates(ctx, queryNode)
	enriched := e.enrichCandidates(ctx, queryNode, candidates)

	family := append([]node{queryNode}, enriched...)
	root := selectRoot(family)

	derivatives := make([]node, 0, len(family))
	for _, n := range family {
		if n.meta.Mint != root.meta.Mint {
			derivatives = append(derivatives, n)
		}
	}
	for i := range derivatives {
		derivatives[i].evidence, derivatives[i].composite = scorePair(e.cfg.Weights, root, derivatives[i])
	}
	sort.Slice(derivatives, func(i, j int) bool { return derivatives[i].composite > derivatives[j].composite })
	if len(derivatives) > e.cfg.MaxDerivatives {
		derivatives = derivatives[:e.cfg.MaxDerivatives]
	}

	result := &models.LineageResult{
		Mint:        mint,
		Root:        &root.meta,
		QueryToken:  &queryNode.meta,
		FamilySize:  len(family),
		Derivatives: toDerivativeInfo(derivatives),
		Confidence:  confidence(root, derivatives),
	}

	if blob, err := json.Marshal(result); err == nil {
		_ = e.store.CacheSet(cacheKey(mint), string(blob), e.cfg.CacheTTL)
	}
	return result, nil
}

// node is a lineage family member enriched with the signals scoring needs:
// raw token metadata plus a perceptual image hash and an operator-metadata
// fingerprint, each optional since enrichment is best-effort.
type node struct {
	meta           models.TokenMetadata
	phash          uint64
	hasPhash       bool
	fingerprint    string
	hasFingerprint bool
	evidence       models.SimilarityEvidence
	composite      float64
}

// buildQueryNode resolves mint's own metadata from the DEX aggregator and
// its deployer/creation time from RPC, enriching it the same way a
// candidate would be.
func (e *Engine) buildQueryNode(ctx context.Context, mint string) node {
	meta := models.TokenMetadata{Mint: mint}
	if pairs, err := e.market.PairsForMint(ctx, mint); err == nil {
		if best := market.BestLiquidityPair(market.SolanaPairs(pairs)); best != nil {
			applyPair(&meta, best)
		}
	}
	if deployer, createdAt, err := e.rpc.GetDeployerAndTimestamp(ctx, mint); err == nil {
		meta.Deployer = deployer
		meta.CreatedAt = createdAt
	}
	return e.enrichNode(ctx, meta)
}

func applyPair(meta *models.TokenMetadata, p *market.Pair) {
	meta.Name = p.BaseToken.Name
	meta.Symbol = p.BaseToken.Symbol
	meta.ImageURI = p.Info.ImageURL
	meta.DexURL = p.URL
	if price := p.PriceUSDFloat(); price > 0 {
		meta.PriceUSD = &price
	}
	if p.MarketCap > 0 {
		mc := p.MarketCap
		meta.MarketCapUSD = &mc
	}
	if p.Liquidity.USD > 0 {
		liq := p.Liquidity.USD
		meta.LiquidityUSD = &liq
	}
	if created := p.CreatedAt(); !created.IsZero() && meta.CreatedAt.IsZero() {
		meta.CreatedAt = created
	}
}

// enrichCandidates resolves deployer/timestamp, image hash, and metadata
// fingerprint for each candidate, bounded to cfg.EnrichConcurrency at a
// time. A candidate whose enrichment entirely fails is dropped rather than
// carried forward with zeroed fields that would read as false similarity.
func (e *Engine) enrichCandidates(ctx context.Context, query node, candidates []models.TokenMetadata) []node {
	sem := semaphore.NewWeighted(e.cfg.EnrichConcurrency)
	out := make([]node, len(candidates))
	ok := make([]bool, len(candidates))

	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c models.TokenMetadata) {
			defer wg.Done()
			if sem.Acquire(ctx, 1) != nil {
				return
			}
			defer sem.Release(1)

			if deployer, createdAt, err := e.rpc.GetDeployerAndTimestamp(ctx, c.Mint); err == nil {
				c.Deployer = deployer
				c.CreatedAt = createdAt
			}
			out[i] = e.enrichNode(ctx, c)
			ok[i] = true
		}(i, c)
	}
	wg.Wait()

	kept := make([]node, 0, len(out))
	for i, n := range out {
		if ok[i] {
			kept = append(kept, n)
		}
	}
	return kept
}

// enrichNode attaches the perceptual image hash and operator-metadata
// fingerprint to a node, best-effort. DEX aggregator responses don't carry
// an off-chain metadata URI, so it's resolved from the DAS asset record
// when the DAS endpoint is configured.
func (e *Engine) enrichNode(ctx context.Context, meta models.TokenMetadata) node {
	if meta.MetadataURI == "" {
		if asset, err := e.rpc.GetAsset(ctx, meta.Mint); err == nil {
			meta.MetadataURI = asset.Content.JsonURI
			if meta.ImageURI == "" {
				meta.ImageURI = asset.Content.Links.Image
			}
		}
	}

	n := node{meta: meta}
	if hash, err := fetchPHash(ctx, e.images, meta.ImageURI); err == nil {
		n.phash, n.hasPhash = hash, true
	}
	if fp, err := fetchFingerprint(ctx, e.meta, meta.MetadataURI); err == nil {
		n.fingerprint, n.hasFingerprint = fp, true
	}
	return n
}

// selectRoot picks the family member with the earliest CreatedAt,
// tie-broken by higher liquidity then higher market cap — the
// lexicographic max of (-created_at, liquidity, market_cap).
func selectRoot(family []node) node {
	best := family[0]
	for _, n := range family[1:] {
		if rootLess(best, n) {
			best = n
		}
	}
	return best
}

// rootLess reports whether candidate ranks ahead of current under the
// root-selection ordering.
func rootLess(current, candidate node) bool {
	ct, cct := current.meta.CreatedAt, candidate.meta.CreatedAt
	switch {
	case cct.IsZero() && !ct.IsZero():
		return false
	case ct.IsZero() && !cct.IsZero():
		return true
	case !ct.Equal(cct):
		return cct.Before(ct)
	}
	cl, ccl := valueOrZero(current.meta.LiquidityUSD), valueOrZero(candidate.meta.LiquidityUSD)
	if cl != ccl {
		return ccl > cl
	}
	cm, ccm := valueOrZero(current.meta.MarketCapUSD), valueOrZero(candidate.meta.MarketCapUSD)
	return ccm > cm
}

func valueOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func toDerivativeInfo(nodes []node) []models.DerivativeInfo {
	out := make([]models.DerivativeInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, models.DerivativeInfo{
			Mint:         n.meta.Mint,
			Name:         n.meta.Name,
			Symbol:       n.meta.Symbol,
			ImageURI:     n.meta.ImageURI,
			CreatedAt:    n.meta.CreatedAt,
			MarketCapUSD: n.meta.MarketCapUSD,
			LiquidityUSD: n.meta.LiquidityUSD,
			Evidence:     n.evidence,
		})
	}
	return out
}

// confidence combines temporal spread, the root's share of family
// liquidity, and how unambiguous the family is (few near-duplicate
// composite scores), weighted 0.4/0.35/0.25 per spec.
func confidence(root node, derivatives []node) float64 {
	if len(derivatives) == 0 {
		return 0
	}
	newer := 0
	nearDup := 0
	for _, d := range derivatives {
		if d.meta.CreatedAt.After(root.meta.CreatedAt) {
			newer++
		}
		if d.composite > 0.8 {
			nearDup++
		}
	}
	temporal := float64(newer) / float64(len(derivatives))
	ambiguity := float64(nearDup) / float64(len(derivatives))

	totalLiq := valueOrZero(root.meta.LiquidityUSD)
	for _, d := range derivatives {
		totalLiq += valueOrZero(d.meta.LiquidityUSD)
	}
	liquidity := 0.0
	if totalLiq > 0 {
		liquidity = valueOrZero(root.meta.LiquidityUSD) / totalLiq
	}

	return 0.4*temporal + 0.35*liquidity + 0.25*(1-ambiguity)
}
