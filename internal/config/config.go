// Package config loads the forensic pipeline's configuration from the
// environment, following the teacher's flat-struct-plus-typed-helpers
// pattern: a single Config struct populated by Load(), with envOr/envInt/
// envFloat helpers handling defaults and parsing.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	// RPC / market data endpoints
	SolanaRPCEndpoint string
	DexscreenerBaseURL string
	JupiterBaseURL     string
	DASEndpoint        string
	WormholescanBaseURL string

	// Cache / storage
	CacheBackend     string
	CacheSQLitePath  string
	CacheTTLSeconds  int

	// Circuit breaker
	CBFailureThreshold int
	CBRecoveryTimeout  float64
	CBSuccessThreshold int

	// Forensic tunables
	SolTraceMaxHops        int
	MinTransferLamports    int64
	RugLiquidityThresholdUSD float64

	// Similarity weights (§4.4)
	WeightName     float64
	WeightSymbol   float64
	WeightImage    float64
	WeightDeployer float64
	WeightTemporal float64

	NameSimilarityThreshold float64

	// Logging
	LogLevel  string
	LogFormat string

	// Telegram alert bot (carried from teacher; repurposed for alert subscriptions)
	TelegramBotToken string
	TelegramChatIDs  []string
}

// Load reads a .env file if present, then populates Config from the
// environment, applying defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SolanaRPCEndpoint:  envOr("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		DexscreenerBaseURL: envOr("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
		JupiterBaseURL:     envOr("JUPITER_BASE_URL", "https://price.jup.ag"),
		DASEndpoint:        envOr("DAS_ENDPOINT", ""),
		WormholescanBaseURL: envOr("WORMHOLESCAN_BASE_URL", "https://api.wormholescan.io/api/v1"),

		CacheBackend:    envOr("CACHE_BACKEND", "sqlite"),
		CacheSQLitePath: envOr("CACHE_SQLITE_PATH", "./forensics.db"),
		CacheTTLSeconds: envInt("CACHE_TTL_SECONDS", 3600),

		CBFailureThreshold: envInt("CB_FAILURE_THRESHOLD", 5),
		CBRecoveryTimeout:  envFloat("CB_RECOVERY_TIMEOUT", 30.0),
		CBSuccessThreshold: envInt("CB_SUCCESS_THRESHOLD", 2),

		SolTraceMaxHops:          envInt("SOL_TRACE_MAX_HOPS", 3),
		MinTransferLamports:      int64(envInt("MIN_TRANSFER_LAMPORTS", 100_000_000)),
		RugLiquidityThresholdUSD: envFloat("RUG_LIQUIDITY_THRESHOLD_USD", 100.0),

		WeightName:     envFloat("WEIGHT_NAME", 0.25),
		WeightSymbol:   envFloat("WEIGHT_SYMBOL", 0.20),
		WeightImage:    envFloat("WEIGHT_IMAGE", 0.20),
		WeightDeployer: envFloat("WEIGHT_DEPLOYER", 0.20),
		WeightTemporal: envFloat("WEIGHT_TEMPORAL", 0.15),

		NameSimilarityThreshold: envFloat("NAME_SIMILARITY_THRESHOLD", 0.82),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "console"),

		TelegramBotToken: envOr("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatIDs:  splitTrim(envOr("TELEGRAM_CHAT_IDS", "")),
	}

	return cfg, cfg.Validate()
}

// Validate checks that numeric configuration is internally consistent.
func (c *Config) Validate() error {
	if c.SolanaRPCEndpoint == "" {
		return fmt.Errorf("SOLANA_RPC_ENDPOINT must not be empty")
	}
	sum := c.WeightName + c.WeightSymbol + c.WeightImage + c.WeightDeployer + c.WeightTemporal
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("similarity weights must sum to ~1.0, got %.4f", sum)
	}
	if c.SolTraceMaxHops <= 0 {
		return fmt.Errorf("SOL_TRACE_MAX_HOPS must be positive")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
