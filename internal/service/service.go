// Package service composes every forensic component into the handful of
// operations the outer collaborators (HTTP API, Telegram bot, CLI) consume:
// analyze(mint), search(query), get_sol_flow_report(mint),
// get_cached_bundle_report(mint), subscribe/unsubscribe/list_subscriptions,
// and health(). It is the dependency container spec.md §9 calls for — every
// long-lived client, breaker, and store handle is built once at startup and
// threaded in here rather than reached for as a package-level global.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lineage-agent/forensics/internal/bundle"
	"github.com/lineage-agent/forensics/internal/cartel"
	"github.com/lineage-agent/forensics/internal/forensic"
	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/imagehash"
	"github.com/lineage-agent/forensics/internal/lineage"
	"github.com/lineage-agent/forensics/internal/market"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
	"github.com/lineage-agent/forensics/internal/similarity"
	"github.com/lineage-agent/forensics/internal/solflow"
	"github.com/lineage-agent/forensics/internal/store"
)

// analyzeTimeout is the top-level analyze(mint) budget; individual
// components enforce their own tighter deadlines (bundle 45s, on-chain
// risk 8s, cartel community 15s), this is the outer backstop.
const analyzeTimeout = 75 * time.Second

// Service wires every forensic subsystem behind the operations spec.md §6
// names as "exposed". It never returns a detailed internal error to a
// caller from Analyze — per §7, the only user-visible failure is a generic
// one, with every sub-signal best-effort beneath it.
type Service struct {
	cfg    Config
	store  *store.Store
	rpc    *rpcclient.Client
	market *market.Client
	images *httpshell.Client

	lineage *lineage.Engine
	bundle  *bundle.Analyzer
	solflow *solflow.Tracer
	cartel  *cartel.Builder
}

// Config carries the handful of cross-cutting tunables Analyze needs beyond
// what each sub-component already defaults for itself.
type Config struct {
	OnChainRiskTimeout     time.Duration
	CartelCommunityTimeout time.Duration
}

// DefaultConfig matches spec.md §5's documented per-operation timeouts.
func DefaultConfig() Config {
	return Config{
		OnChainRiskTimeout:     8 * time.Second,
		CartelCommunityTimeout: 15 * time.Second,
	}
}

// New assembles a Service from already-constructed long-lived dependencies.
func New(st *store.Store, rpc *rpcclient.Client, mkt *market.Client, images *httpshell.Client,
	lineageEngine *lineage.Engine, bundleAnalyzer *bundle.Analyzer, tracer *solflow.Tracer, cartelBuilder *cartel.Builder, cfg Config) *Service {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Service{
		cfg:     cfg,
		store:   st,
		rpc:     rpc,
		market:  mkt,
		images:  images,
		lineage: lineageEngine,
		bundle:  bundleAnalyzer,
		solflow: tracer,
		cartel:  cartelBuilder,
	}
}

// Analyze runs analyze(mint): Lineage Engine, then Bundle Forensics, then a
// cache-only read of the SOL Flow report, then every best-effort §4.9
// forensic derivation, composed into one LineageResult. Any sub-signal that
// cannot be computed is left nil; only a failure in the lineage family
// assembly itself produces an error, and even then the message never leaks
// internal detail (§7 propagation policy).
func (s *Service) Analyze(ctx context.Context, mint string) (*models.LineageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	result, err := s.lineage.Analyze(ctx, mint)
	if err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("analyze: lineage engine failed")
		return nil, fmt.Errorf("internal error")
	}
	if result.Root == nil {
		return result, nil
	}

	deployer := result.Root.Deployer
	now := time.Now().UTC()

	s.recordTokenCreated(result.QueryToken)

	if s.bundle != nil && deployer != "" {
		if report, err := s.bundle.Analyze(ctx, mint); err != nil {
			log.Debug().Err(err).Str("mint", mint).Msg("analyze: bundle forensics")
		} else {
			result.BundleReport = report
		}
	}

	if report, ok, err := s.store.SolFlowReportGet(mint); err == nil && ok {
		result.SolFlowReport = report
	}

	if deployer != "" {
		result.DeathClock = s.deathClock(deployer, result.Root.CreatedAt, now)
		result.FactoryRhythm = s.factoryRhythm(deployer)
		result.NarrativeTiming = s.narrativeTiming(result.Root, now)
		result.OnChainRisk = s.onChainRisk(ctx, mint, deployer)
		result.InsiderSell = s.insiderSell(ctx, mint, deployer)
	}

	result.LiquidityArch = s.liquidityArchitecture(ctx, mint)
	result.ZombieAlert = s.zombieAlert(ctx, result, now)
	result.OperatorFingerprint = s.operatorFingerprint(ctx, result)
	if result.OperatorFingerprint != nil {
		result.OperatorImpact = s.operatorImpact(result.OperatorFingerprint.Deployers)
	}

	if s.cartel != nil && deployer != "" {
		cartelCtx, cartelCancel := context.WithTimeout(ctx, s.cfg.CartelCommunityTimeout)
		report, err := s.cartel.Community(cartelCtx, mint, deployer)
		cartelCancel()
		if err != nil {
			log.Debug().Err(err).Str("mint", mint).Msg("analyze: cartel community")
		} else {
			result.CartelReport = report
		}
	}

	return result, nil
}

// recordTokenCreated appends a token_created observation for a freshly
// resolved query token, best-effort and idempotent-by-dedup-at-query-time
// (the Event Store is append-only; repeat observations are expected and
// collapsed by readers, not writers, per spec.md §3).
func (s *Service) recordTokenCreated(token *models.TokenMetadata) {
	if token == nil || token.Mint == "" || token.CreatedAt.IsZero() {
		return
	}
	ev := models.TokenEvent{
		EventType: models.EventTokenCreated,
		Mint:      token.Mint,
		Deployer:  token.Deployer,
		Name:      token.Name,
		Symbol:    token.Symbol,
		Narrative: forensic.ClassifyNarrative(token.Name, token.Symbol),
		CreatedAt: token.CreatedAt,
	}
	if mcap := floatOrZero(token.MarketCapUSD); mcap > 0 {
		ev.McapUSD = mcap
	}
	if liq := floatOrZero(token.LiquidityUSD); liq > 0 {
		ev.LiqUSD = liq
	}
	if err := s.store.RecordEvent(ev); err != nil {
		log.Debug().Err(err).Str("mint", token.Mint).Msg("analyze: record token_created")
	}
}

func (s *Service) deathClock(deployer string, currentCreatedAt, now time.Time) *models.DeathClock {
	history, err := s.store.EventsByDeployer(deployer)
	if err != nil {
		return nil
	}
	return forensic.DeathClock(history, currentCreatedAt, now)
}

func (s *Service) factoryRhythm(deployer string) *models.FactoryRhythm {
	history, err := s.store.EventsByDeployer(deployer)
	if err != nil || len(history) == 0 {
		return nil
	}
	names := make([]string, 0, len(history))
	created := make([]time.Time, 0, len(history))
	mcaps := make([]float64, 0, len(history))
	for _, ev := range history {
		if ev.CreatedAt.IsZero() {
			continue
		}
		names = append(names, ev.Name)
		created = append(created, ev.CreatedAt)
		if ev.McapUSD > 0 {
			mcaps = append(mcaps, ev.McapUSD)
		}
	}
	return forensic.FactoryRhythm(names, created, mcaps)
}

func (s *Service) narrativeTiming(token *models.TokenMetadata, now time.Time) *models.NarrativeTiming {
	narrative := forensic.ClassifyNarrative(token.Name, token.Symbol)
	events, err := s.store.EventsByNarrative(narrative, now.Add(-90*24*time.Hour))
	if err != nil {
		return nil
	}
	times := make([]time.Time, 0, len(events))
	for _, ev := range events {
		if !ev.CreatedAt.IsZero() {
			times = append(times, ev.CreatedAt)
		}
	}
	return forensic.NarrativeTiming(times, token.CreatedAt, now)
}

func (s *Service) onChainRisk(ctx context.Context, mint, deployer string) *models.OnChainRisk {
	if s.rpc == nil {
		return nil
	}
	riskCtx, cancel := context.WithTimeout(ctx, s.cfg.OnChainRiskTimeout)
	defer cancel()

	largest, err := s.rpc.GetTokenLargestAccounts(riskCtx, mint)
	if err != nil || len(largest) == 0 {
		return nil
	}
	deployerBalance, _ := s.rpc.GetWalletTokenBalance(riskCtx, deployer, mint)
	return forensic.OnChainRisk(largest, deployerBalance)
}

func (s *Service) insiderSell(ctx context.Context, mint, deployer string) *models.InsiderSellReport {
	if s.market == nil || s.rpc == nil {
		return nil
	}
	pairs, err := s.market.PairsForMint(ctx, mint)
	if err != nil {
		return nil
	}
	best := market.BestLiquidityPair(pairs)
	if best == nil {
		return nil
	}
	buys := best.Txns.H24.Buys
	sells := best.Txns.H24.Sells
	var sellPressure float64
	if total := buys + sells; total > 0 {
		sellPressure = float64(sells) / float64(total)
	}
	var volumeSpike float64
	if best.Volume.H24 > 0 {
		volumeSpike = (best.Volume.H1 * 24) / best.Volume.H24
	}
	balance, _ := s.rpc.GetWalletTokenBalance(ctx, deployer, mint)
	deployerExited := balance == 0

	return forensic.InsiderSell(forensic.InsiderSellInputs{
		SellPressure:     sellPressure,
		PriceChangePct:   best.PriceChange.H24,
		VolumeSpikeRatio: volumeSpike,
		DeployerExited:   deployerExited,
	})
}

func (s *Service) liquidityArchitecture(ctx context.Context, mint string) *models.LiquidityArchitecture {
	if s.market == nil {
		return nil
	}
	pairs, err := s.market.PairsForMint(ctx, mint)
	if err != nil {
		return nil
	}
	pools := make([]forensic.PoolStat, 0, len(pairs))
	for _, p := range market.SolanaPairs(pairs) {
		pools = append(pools, forensic.PoolStat{LiquidityUSD: p.Liquidity.USD, VolumeUSD: p.Volume.H24})
	}
	return forensic.LiquidityArchitecture(pools)
}

// zombieAlert scans the lineage family (root plus derivatives) pairwise for
// a dead-token/live-resurrection pairing, fetching each mint's image hash
// only once and memoizing it across the O(n^2) comparison.
func (s *Service) zombieAlert(ctx context.Context, result *models.LineageResult, now time.Time) *models.ZombieAlert {
	if s.images == nil || result.Root == nil {
		return nil
	}
	candidates := []forensic.ZombieCandidate{{
		Mint:         result.Root.Mint,
		Deployer:     result.Root.Deployer,
		LiquidityUSD: floatOrZero(result.Root.LiquidityUSD),
		CreatedAt:    result.Root.CreatedAt,
	}}
	imageURIs := map[string]string{result.Root.Mint: result.Root.ImageURI}
	for _, d := range result.Derivatives {
		candidates = append(candidates, forensic.ZombieCandidate{
			Mint:         d.Mint,
			LiquidityUSD: floatOrZero(d.LiquidityUSD),
			CreatedAt:    d.CreatedAt,
		})
		imageURIs[d.Mint] = d.ImageURI
	}

	hashes := map[string]uint64{}
	hashOf := func(mint string) (uint64, bool) {
		if h, ok := hashes[mint]; ok {
			return h, h != 0
		}
		h, err := imagehash.Fetch(ctx, s.images, imageURIs[mint])
		hashes[mint] = h
		return h, err == nil
	}

	return forensic.ScanZombies(candidates, now, func(deadMint, liveMint string) float64 {
		deadHash, ok1 := hashOf(deadMint)
		liveHash, ok2 := hashOf(liveMint)
		if !ok1 || !ok2 {
			return 0
		}
		return similarity.ImageScore(deadHash, liveHash)
	})
}

// operatorFingerprint checks whether the lineage family's deployers share
// an off-chain metadata DNA fingerprint, returning the group this query's
// own deployer belongs to, if any.
func (s *Service) operatorFingerprint(ctx context.Context, result *models.LineageResult) *models.OperatorFingerprint {
	if s.images == nil || result.Root == nil {
		return nil
	}
	triples := []forensic.MetadataTriple{{Mint: result.Root.Mint, Deployer: result.Root.Deployer, MetadataURI: result.Root.MetadataURI}}
	for _, d := range result.Derivatives {
		triples = append(triples, forensic.MetadataTriple{Mint: d.Mint, MetadataURI: ""})
	}
	groups := forensic.ComputeOperatorFingerprints(ctx, s.images, triples)
	for _, g := range groups {
		for _, d := range g.Deployers {
			if d == result.Root.Deployer {
				if err := s.store.UpsertOperatorMapping(g.Fingerprint, result.Root.Deployer); err != nil {
					log.Debug().Err(err).Msg("analyze: upsert operator mapping")
				}
				return &g
			}
		}
	}
	return nil
}

// operatorImpact aggregates estimated extracted USD across every rug
// attributed to the operator's fingerprint-linked deployers.
func (s *Service) operatorImpact(deployers []string) *models.OperatorImpact {
	var peaks []*float64
	for _, d := range deployers {
		history, err := s.store.EventsByDeployer(d)
		if err != nil {
			continue
		}
		for _, ev := range history {
			if ev.RuggedAt == nil {
				continue
			}
			mcap := ev.McapUSD
			peaks = append(peaks, &mcap)
		}
	}
	return forensic.OperatorImpact(peaks)
}

// Search implements search(query): a thin pass-through to the DEX
// aggregator's name/symbol search, converted into the flatter
// TokenSearchResult shape external collaborators render.
func (s *Service) Search(ctx context.Context, query string) ([]models.TokenSearchResult, error) {
	pairs, err := s.market.SearchPairs(ctx, query)
	if err != nil {
		return nil, nil
	}
	seen := map[string]bool{}
	out := make([]models.TokenSearchResult, 0, len(pairs))
	for _, p := range market.SolanaPairs(pairs) {
		if seen[p.BaseToken.Address] {
			continue
		}
		seen[p.BaseToken.Address] = true
		price := p.PriceUSDFloat()
		mcap := p.MarketCap
		liq := p.Liquidity.USD
		out = append(out, models.TokenSearchResult{
			Mint:         p.BaseToken.Address,
			Name:         p.BaseToken.Name,
			Symbol:       p.BaseToken.Symbol,
			ImageURI:     p.Info.ImageURL,
			PriceUSD:     &price,
			MarketCapUSD: &mcap,
			LiquidityUSD: &liq,
			DexURL:       p.URL,
		})
	}
	return out, nil
}

// GetSolFlowReport implements get_sol_flow_report(mint): serve the cached
// report if one exists, otherwise run a fresh trace (the tracer enforces
// its own 20s budget and persists as it goes).
func (s *Service) GetSolFlowReport(ctx context.Context, mint string) (*models.SolFlowReport, error) {
	if report, ok, err := s.store.SolFlowReportGet(mint); err == nil && ok {
		return report, nil
	}
	deployer, _, err := s.rpc.GetDeployerAndTimestamp(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("internal error")
	}
	return s.solflow.Trace(ctx, mint, deployer)
}

// GetCachedBundleReport implements get_cached_bundle_report(mint): a
// cache-only read, never triggering a fresh 45s bundle analysis.
func (s *Service) GetCachedBundleReport(mint string) (*models.BundleExtractionReport, bool, error) {
	return s.store.BundleReportGet(mint)
}

// Subscribe implements subscribe(chat_id, sub_type, value).
func (s *Service) Subscribe(chatID int64, subType, value string) error {
	return s.store.Subscribe(chatID, subType, value)
}

// Unsubscribe implements unsubscribe(chat_id, sub_type, value).
func (s *Service) Unsubscribe(chatID int64, subType, value string) error {
	return s.store.Unsubscribe(chatID, subType, value)
}

// ListSubscriptions implements list_subscriptions(chat_id) — the Event
// Store itself indexes by sub_type rather than chat_id, so this filters
// client-side; the subscription table is small enough per spec.md's
// CRUD characterization that this is not a hot path worth a dedicated index.
func (s *Service) ListSubscriptions(chatID int64) ([]models.AlertSubscription, error) {
	all, err := s.store.AllSubscriptions()
	if err != nil {
		return nil, err
	}
	out := make([]models.AlertSubscription, 0, len(all))
	for _, sub := range all {
		if sub.ChatID == chatID {
			out = append(out, sub)
		}
	}
	return out, nil
}

// HealthReport mirrors health()'s circuit-breaker status snapshot.
type HealthReport struct {
	Breakers []httpshell.Status `json:"breakers"`
}

// Health implements health(): every registered backend's current breaker
// state and counters, the admin-visible surface §4.1 describes.
func (s *Service) Health(clients ...*httpshell.Client) HealthReport {
	report := HealthReport{Breakers: make([]httpshell.Status, 0, len(clients))}
	for _, c := range clients {
		if c != nil {
			report.Breakers = append(report.Breakers, c.Status())
		}
	}
	return report
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
