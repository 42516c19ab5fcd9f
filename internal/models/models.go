// Package models holds the data contracts shared across every forensic
// component: on-chain token metadata, similarity evidence, lineage results,
// bundle and SOL-flow reports, and the cartel graph types. Every type here
// must round-trip through encoding/json untouched — callers treat Extra
// fields as opaque blobs they may not understand.
package models

import "time"

// TokenMetadata is the on-chain/off-chain record for a single mint.
type TokenMetadata struct {
	Mint          string    `json:"mint"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	ImageURI      string    `json:"image_uri"`
	Deployer      string    `json:"deployer"`
	CreatedAt     time.Time `json:"created_at"`
	MarketCapUSD  *float64  `json:"market_cap_usd,omitempty"`
	LiquidityUSD  *float64  `json:"liquidity_usd,omitempty"`
	PriceUSD      *float64  `json:"price_usd,omitempty"`
	DexURL        string    `json:"dex_url"`
	MetadataURI   string    `json:"metadata_uri"`
}

// SimilarityEvidence carries the per-dimension scores behind a composite.
type SimilarityEvidence struct {
	NameScore      float64 `json:"name_score"`
	SymbolScore    float64 `json:"symbol_score"`
	ImageScore     float64 `json:"image_score"`
	DeployerScore  float64 `json:"deployer_score"`
	TemporalScore  float64 `json:"temporal_score"`
	CompositeScore float64 `json:"composite_score"`
}

// DerivativeInfo is a single suspected clone within a lineage family.
type DerivativeInfo struct {
	Mint         string             `json:"mint"`
	Name         string             `json:"name"`
	Symbol       string             `json:"symbol"`
	ImageURI     string             `json:"image_uri"`
	CreatedAt    time.Time          `json:"created_at"`
	MarketCapUSD *float64           `json:"market_cap_usd,omitempty"`
	LiquidityUSD *float64           `json:"liquidity_usd,omitempty"`
	Evidence     SimilarityEvidence `json:"evidence"`
}

// LineageResult is the top-level, ephemeral output of analyze(mint). It is
// composed fresh from the Event Store and forensic sub-results on every
// cache miss and is never itself persisted — only its ingredients are.
type LineageResult struct {
	Mint        string            `json:"mint"`
	Root        *TokenMetadata    `json:"root,omitempty"`
	Confidence  float64           `json:"confidence"`
	Derivatives []DerivativeInfo  `json:"derivatives"`
	FamilySize  int               `json:"family_size"`
	QueryToken  *TokenMetadata    `json:"query_token,omitempty"`

	// Attached forensic signals (§3 LineageResult). Each is best-effort and
	// may be nil when the underlying signal could not be computed.
	ZombieAlert       *ZombieAlert       `json:"zombie_alert,omitempty"`
	DeathClock        *DeathClock        `json:"death_clock,omitempty"`
	OperatorFingerprint *OperatorFingerprint `json:"operator_fingerprint,omitempty"`
	LiquidityArch     *LiquidityArchitecture `json:"liquidity_architecture,omitempty"`
	OnChainRisk       *OnChainRisk       `json:"on_chain_risk,omitempty"`
	InsiderSell       *InsiderSellReport `json:"insider_sell,omitempty"`
	FactoryRhythm     *FactoryRhythm     `json:"factory_rhythm,omitempty"`
	NarrativeTiming   *NarrativeTiming   `json:"narrative_timing,omitempty"`
	CartelReport      *CartelReport      `json:"cartel_report,omitempty"`
	OperatorImpact    *OperatorImpact    `json:"operator_impact,omitempty"`
	BundleReport      *BundleExtractionReport `json:"bundle_report,omitempty"`
	SolFlowReport     *SolFlowReport     `json:"sol_flow_report,omitempty"`
}

// TokenSearchResult is returned from the search(query) operation.
type TokenSearchResult struct {
	Mint         string   `json:"mint"`
	Name         string   `json:"name"`
	Symbol       string   `json:"symbol"`
	ImageURI     string   `json:"image_uri"`
	PriceUSD     *float64 `json:"price_usd,omitempty"`
	MarketCapUSD *float64 `json:"market_cap_usd,omitempty"`
	LiquidityUSD *float64 `json:"liquidity_usd,omitempty"`
	DexURL       string   `json:"dex_url"`
}

// ---------------------------------------------------------------------------
// Bundle forensics
// ---------------------------------------------------------------------------

type BundleWalletVerdict string

const (
	VerdictConfirmedTeam   BundleWalletVerdict = "confirmed_team"
	VerdictSuspectedTeam   BundleWalletVerdict = "suspected_team"
	VerdictCoordinatedDump BundleWalletVerdict = "coordinated_dump"
	VerdictEarlyBuyer      BundleWalletVerdict = "early_buyer"
)

type OverallVerdict string

const (
	OverallConfirmedTeamExtraction    OverallVerdict = "confirmed_team_extraction"
	OverallSuspectedTeamExtraction    OverallVerdict = "suspected_team_extraction"
	OverallCoordinatedDumpUnknownTeam OverallVerdict = "coordinated_dump_unknown_team"
	OverallEarlyBuyersNoLinkProven    OverallVerdict = "early_buyers_no_link_proven"
)

// PreSellBehavior is a bundle wallet's history before the token launch.
type PreSellBehavior struct {
	WalletAgeDays             float64 `json:"wallet_age_days"`
	IsDormant                 bool    `json:"is_dormant"`
	PreLaunchTxCount          int     `json:"pre_launch_tx_count"`
	PreLaunchUniqueTokens     int     `json:"pre_launch_unique_tokens"`
	PrefundSource             string  `json:"prefund_source,omitempty"`
	PrefundSOL                float64 `json:"prefund_sol"`
	PrefundHoursBeforeLaunch  float64 `json:"prefund_hours_before_launch"`
	PrefundSourceIsDeployer   bool    `json:"prefund_source_is_deployer"`
	PrefundSourceIsKnownFunder bool   `json:"prefund_source_is_known_funder"`
	SameDeployerPriorLaunches int     `json:"same_deployer_prior_launches"`
	PriorBundleCount          int     `json:"prior_bundle_count"`
}

// FundDestination is a single traced SOL outflow destination.
type FundDestination struct {
	Destination        string `json:"destination"`
	Lamports           int64  `json:"lamports"`
	Hop                int    `json:"hop"`
	LinkToDeployer     bool   `json:"link_to_deployer"`
	SeenInOtherBundles bool   `json:"seen_in_other_bundles"`
}

// PostSellBehavior is a bundle wallet's traced SOL outflow after its exit.
type PostSellBehavior struct {
	SellDetected                      bool              `json:"sell_detected"`
	SellSlot                          *uint64           `json:"sell_slot,omitempty"`
	SellTxSignature                   string            `json:"sell_tx_signature,omitempty"`
	SOLReceivedFromSell               float64           `json:"sol_received_from_sell"`
	FundDestinations                  []FundDestination `json:"fund_destinations"`
	DirectTransferToDeployer          bool              `json:"direct_transfer_to_deployer"`
	TransferToDeployerLinkedWallet    bool              `json:"transfer_to_deployer_linked_wallet"`
	IndirectViaIntermediary           bool              `json:"indirect_via_intermediary"`
	CommonDestinationWithOtherBundles bool              `json:"common_destination_with_other_bundles"`
}

// BundleWalletAnalysis is the per-wallet outcome of the five-phase pipeline.
type BundleWalletAnalysis struct {
	Wallet   string              `json:"wallet"`
	SOLSpent float64             `json:"sol_spent"`
	PreSell  PreSellBehavior     `json:"pre_sell"`
	PostSell PostSellBehavior    `json:"post_sell"`
	RedFlags []string            `json:"red_flags"`
	Verdict  BundleWalletVerdict `json:"verdict"`
}

// BundleExtractionReport is the aggregated output of analyze_bundle.
type BundleExtractionReport struct {
	Mint                      string                 `json:"mint"`
	Deployer                  string                 `json:"deployer"`
	LaunchSlot                uint64                 `json:"launch_slot"`
	BundleWallets             []BundleWalletAnalysis `json:"bundle_wallets"`
	ConfirmedTeamWallets      []string               `json:"confirmed_team_wallets"`
	SuspectedTeamWallets      []string               `json:"suspected_team_wallets"`
	CoordinatedDumpWallets    []string               `json:"coordinated_dump_wallets"`
	EarlyBuyerWallets         []string               `json:"early_buyer_wallets"`
	TotalSOLSpentByBundle     float64                `json:"total_sol_spent_by_bundle"`
	TotalSOLExtractedConfirmed float64               `json:"total_sol_extracted_confirmed"`
	TotalUSDExtracted         *float64               `json:"total_usd_extracted,omitempty"`
	CommonPrefundSource       string                 `json:"common_prefund_source,omitempty"`
	CommonSinkWallets         []string               `json:"common_sink_wallets"`
	CoordinatedSellDetected   bool                   `json:"coordinated_sell_detected"`
	OverallVerdict            OverallVerdict         `json:"overall_verdict"`
	EvidenceChain             []string               `json:"evidence_chain"`
}

// ---------------------------------------------------------------------------
// SOL flow tracer
// ---------------------------------------------------------------------------

// SolFlowEdge is a single persisted hop in a deployer's outbound SOL graph.
type SolFlowEdge struct {
	Mint          string     `json:"mint"`
	FromAddress   string     `json:"from_address"`
	ToAddress     string     `json:"to_address"`
	AmountLamports int64     `json:"amount_lamports"`
	AmountSOL     float64    `json:"amount_sol"`
	Signature     string     `json:"signature"`
	Slot          uint64     `json:"slot"`
	BlockTime     *time.Time `json:"block_time,omitempty"`
	Hop           int        `json:"hop"`
	FromLabel     string     `json:"from_label,omitempty"`
	ToLabel       string     `json:"to_label,omitempty"`
	EntityType    string     `json:"entity_type,omitempty"`
}

// CrossChainExit is a detected bridge-exit destination for a traced wallet.
type CrossChainExit struct {
	Wallet    string `json:"wallet"`
	ToChain   string `json:"to_chain"`
	ToAddress string `json:"to_address"`
}

// SolFlowReport is the reconstructed capital graph from a deployer.
type SolFlowReport struct {
	Mint                string           `json:"mint"`
	Deployer            string           `json:"deployer"`
	TotalExtractedSOL    float64          `json:"total_extracted_sol"`
	TotalExtractedUSD    *float64         `json:"total_extracted_usd,omitempty"`
	Flows               []SolFlowEdge    `json:"flows"`
	TerminalWallets      []string         `json:"terminal_wallets"`
	KnownCEXDetected     bool             `json:"known_cex_detected"`
	HopCount             int              `json:"hop_count"`
	AnalysisTimestamp    time.Time        `json:"analysis_timestamp"`
	RugTimestamp         *time.Time       `json:"rug_timestamp,omitempty"`
	CrossChainExits      []CrossChainExit `json:"cross_chain_exits"`
}

// ---------------------------------------------------------------------------
// Cartel graph
// ---------------------------------------------------------------------------

type CartelSignalType string

const (
	SignalDNAMatch    CartelSignalType = "dna_match"
	SignalSolTransfer CartelSignalType = "sol_transfer"
	SignalTimingSync  CartelSignalType = "timing_sync"
	SignalPhashCluster CartelSignalType = "phash_cluster"
	SignalCrossHolding CartelSignalType = "cross_holding"
	SignalFundingLink  CartelSignalType = "funding_link"
	SignalSharedLP     CartelSignalType = "shared_lp"
	SignalSniperRing   CartelSignalType = "sniper_ring"
)

// CartelEdge is one coordination-signal link between two deployer wallets.
// WalletA is always lexicographically less than WalletB.
type CartelEdge struct {
	WalletA        string                 `json:"wallet_a"`
	WalletB        string                 `json:"wallet_b"`
	SignalType     CartelSignalType       `json:"signal_type"`
	SignalStrength float64                `json:"signal_strength"`
	Evidence       map[string]interface{} `json:"evidence"`
}

type CartelConfidence string

const (
	ConfidenceHigh   CartelConfidence = "high"
	ConfidenceMedium CartelConfidence = "medium"
	ConfidenceLow    CartelConfidence = "low"
)

// CartelCommunity is a Louvain-detected cluster of coordinated wallets.
type CartelCommunity struct {
	CommunityID           string           `json:"community_id"`
	Wallets               []string         `json:"wallets"`
	TotalTokensLaunched    int              `json:"total_tokens_launched"`
	TotalRugs              int              `json:"total_rugs"`
	EstimatedExtractedUSD  float64          `json:"estimated_extracted_usd"`
	ActiveSince            *time.Time       `json:"active_since,omitempty"`
	StrongestSignal        CartelSignalType `json:"strongest_signal"`
	Edges                  []CartelEdge     `json:"edges"`
	Confidence             CartelConfidence `json:"confidence"`
}

// CartelReport wraps the community (if any) detected for a deployer.
type CartelReport struct {
	Mint              string           `json:"mint"`
	DeployerCommunity *CartelCommunity `json:"deployer_community,omitempty"`
}

// ---------------------------------------------------------------------------
// Supporting forensic derivations (§4.9)
// ---------------------------------------------------------------------------

type DeathClockSeverity string

const (
	DeathClockLow          DeathClockSeverity = "low"
	DeathClockMedium       DeathClockSeverity = "medium"
	DeathClockHigh         DeathClockSeverity = "high"
	DeathClockCritical     DeathClockSeverity = "critical"
	DeathClockInsufficient DeathClockSeverity = "insufficient_data"
)

// DeathClock estimates a running token's remaining lifespan from deployer history.
type DeathClock struct {
	MedianLifespanHours float64             `json:"median_lifespan_hours"`
	StdevLifespanHours  float64             `json:"stdev_lifespan_hours"`
	ElapsedHours        float64             `json:"elapsed_hours"`
	Ratio               float64             `json:"ratio"`
	Severity            DeathClockSeverity  `json:"severity"`
}

type NamingPattern string

const (
	NamingIncremental NamingPattern = "incremental"
	NamingThemed      NamingPattern = "themed"
	NamingRandom      NamingPattern = "random"
)

// FactoryRhythm captures a deployer's cadence of token launches.
type FactoryRhythm struct {
	MedianIntervalHours float64       `json:"median_interval_hours"`
	Regularity          float64       `json:"regularity"`
	NamingPattern       NamingPattern `json:"naming_pattern"`
	FactoryScore        float64       `json:"factory_score"`
	IsFactory           bool          `json:"is_factory"`
}

type NarrativeStatus string

const (
	NarrativeEarly  NarrativeStatus = "early"
	NarrativeRising NarrativeStatus = "rising"
	NarrativePeak   NarrativeStatus = "peak"
	NarrativeLate   NarrativeStatus = "late"
)

// NarrativeTiming places a token within its narrative category's hype cycle.
type NarrativeTiming struct {
	CyclePercentile float64         `json:"cycle_percentile"`
	PeakWindowCount int             `json:"peak_window_count"`
	Momentum        float64         `json:"momentum"`
	Status          NarrativeStatus `json:"status"`
}

type ZombieConfidence string

const (
	ZombieConfirmed ZombieConfidence = "confirmed"
	ZombieProbable  ZombieConfidence = "probable"
	ZombiePossible  ZombieConfidence = "possible"
)

// ZombieAlert flags a live token as a probable relaunch of a dead one.
type ZombieAlert struct {
	DeadMint         string           `json:"dead_mint"`
	ResurrectionMint string           `json:"resurrection_mint"`
	SameDeployer     bool             `json:"same_deployer"`
	ImageScore       float64          `json:"image_score"`
	Confidence       ZombieConfidence `json:"confidence"`
}

// OperatorFingerprint groups deployers that reuse off-chain metadata DNA.
type OperatorFingerprint struct {
	Fingerprint string   `json:"fingerprint"`
	Deployers   []string `json:"deployers"`
	Mints       []string `json:"mints"`
}

// OnChainRisk is a holder-concentration based risk score.
type OnChainRisk struct {
	Top10Pct      float64  `json:"top10_pct"`
	Top1Pct       float64  `json:"top1_pct"`
	DeployerPct   float64  `json:"deployer_pct"`
	RiskScore     float64  `json:"risk_score"`
	Flags         []string `json:"flags"`
}

type InsiderVerdict string

const (
	InsiderDump      InsiderVerdict = "insider_dump"
	InsiderSuspicious InsiderVerdict = "suspicious"
	InsiderClean     InsiderVerdict = "clean"
)

// InsiderSellReport flags deployer/linked-wallet dumping behavior.
type InsiderSellReport struct {
	Flags     []string       `json:"flags"`
	RiskScore float64        `json:"risk_score"`
	Verdict   InsiderVerdict `json:"verdict"`
}

// LiquidityArchitecture summarizes pool concentration and authenticity.
type LiquidityArchitecture struct {
	HHI               float64  `json:"hhi"`
	LiqVolumeRatio    float64  `json:"liq_volume_ratio"`
	AuthenticityScore float64  `json:"authenticity_score"`
	Flags             []string `json:"flags"`
}

// OperatorImpact estimates the aggregate USD extracted by an operator's rugs.
type OperatorImpact struct {
	TotalRugs           int     `json:"total_rugs"`
	EstimatedExtractedUSD float64 `json:"estimated_extracted_usd"`
}

// ---------------------------------------------------------------------------
// Event store rows
// ---------------------------------------------------------------------------

// TokenEvent is a single append-only observation.
type TokenEvent struct {
	ID         int64             `json:"id"`
	EventType  string            `json:"event_type"`
	Mint       string            `json:"mint"`
	Deployer   string            `json:"deployer"`
	Name       string            `json:"name"`
	Symbol     string            `json:"symbol"`
	Narrative  string            `json:"narrative"`
	McapUSD    float64           `json:"mcap_usd"`
	LiqUSD     float64           `json:"liq_usd"`
	CreatedAt  time.Time         `json:"created_at"`
	RuggedAt   *time.Time        `json:"rugged_at,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

const (
	EventTokenCreated  = "token_created"
	EventTokenRugged   = "token_rugged"
	EventSolFlowEmitted = "sol_flow_emitted"
)

// OperatorMapping links a wallet to an operator-DNA fingerprint.
type OperatorMapping struct {
	Fingerprint string `json:"fingerprint"`
	Wallet      string `json:"wallet"`
}

// AlertSubscription records a Telegram subscriber's watch criteria.
type AlertSubscription struct {
	ID        int64  `json:"id"`
	ChatID    int64  `json:"chat_id"`
	SubType   string `json:"sub_type"` // deployer | narrative
	Value     string `json:"value"`
}

const (
	SubTypeDeployer  = "deployer"
	SubTypeNarrative = "narrative"
)
