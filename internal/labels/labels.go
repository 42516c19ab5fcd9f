// Package labels is the single source of truth for address identity:
// known system/DEX/launchpad/MEV/bridge/CEX addresses, the programs that
// should never be treated as forensic counterparties, and the numeric
// tunables that depend on that classification. Every other package
// (rpcclient, bundle, solflow, cartel) defers to this one instead of
// keeping its own address lists, which is what caused the divergent
// CEX sets this package replaces.
package labels

import "strings"

// EntityType is the coarse classification bucket for a known address.
type EntityType string

const (
	EntitySystem    EntityType = "system"
	EntityDEX       EntityType = "dex"
	EntityLaunchpad EntityType = "launchpad"
	EntityMEV       EntityType = "mev"
	EntityBridge    EntityType = "bridge"
	EntityCEX       EntityType = "cex"
	EntityMixer     EntityType = "mixer"
	EntityWallet    EntityType = "wallet"
	EntityContract  EntityType = "contract"
)

// Numeric tunables, overridable via internal/config at startup.
var (
	DeadLiquidityUSD    = 100.0
	ExtractionRate      = 0.15
	LamportsPerSOL int64 = 1_000_000_000
	MinTransferLamports int64 = 100_000_000
)

const (
	SystemProgram       = "11111111111111111111111111111111"
	TokenProgram        = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022Program    = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	ATAProgram          = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	BPFLoader           = "BPFLoaderUpgradeab1e11111111111111111111111"
	SysvarClock         = "SysvarC1ock11111111111111111111111111111111"
	SysvarRent          = "SysvarRent111111111111111111111111111111111"
	VoteProgram         = "Vote111111111111111111111111111111111111111"
	StakeProgram        = "Stake11111111111111111111111111111111111111"
	ComputeBudget       = "ComputeBudget111111111111111111111111111111"
	MemoProgram         = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	WSOLMint            = "So11111111111111111111111111111111111111112"
	MetaplexMetadata    = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
)

// SystemPrograms are Solana-native programs never treated as wallets.
var SystemPrograms = map[string]bool{
	SystemProgram:    true,
	TokenProgram:     true,
	Token2022Program: true,
	ATAProgram:       true,
	BPFLoader:        true,
	SysvarClock:      true,
	SysvarRent:       true,
	VoteProgram:      true,
	StakeProgram:     true,
	ComputeBudget:    true,
	MemoProgram:      true,
	MetaplexMetadata: true,
}

// SkipPrograms is the union of system programs plus DEX/AMM/launchpad/MEV
// program ids that must never be traced as forensic counterparties.
var SkipPrograms = mergeSets(SystemPrograms, map[string]bool{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": true, // Raydium AMM v4
	"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK": true, // Raydium CLMM
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  true, // Orca Whirlpool
	"EewxydAPCCVuNEyrVN68PuSYdQ7wKn27V9Gjeoi8dy3S": true, // Pump.fun bonding curve
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  true, // Pump.fun program
	"M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K":  true, // Meteora DLMM
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  true, // Meteora pools
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4": true, // Jupiter aggregator
	"JitoDontFrontXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX": true, // Jito tip/MEV program (placeholder id)
})

// LPPrograms are DEX/AMM program ids whose presence in a transaction's
// account keys marks it as liquidity-pool activity rather than a plain
// transfer, used by the cartel financial signals to flag LP-provider txs.
var LPPrograms = map[string]bool{
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": true, // Raydium AMM v4
	"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK": true, // Raydium CLMM
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  true, // Orca Whirlpool
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  true, // Meteora DLMM
	"Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB": true, // Meteora Pools
	"EewxydAPCCVuNEyrVN68PuSYdQ7wKn27V9Gjeoi8dy3S": true, // Pump.fun bonding curve
	"srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX":  true, // Serum
}

// BridgePrograms are known cross-chain bridge program ids whose presence
// as a sol_flow edge destination marks an off-chain exit attempt.
var BridgePrograms = map[string]bool{
	"worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth":  true, // Wormhole Core Bridge
	"wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb":  true, // Wormhole Token Bridge
	"WnFt12ZrnzZrFZkt2xsNsaNWoQribnuQ5B5FrDbwDhD":  true, // Wormhole NFT Bridge
	"SwapsVeCiPHMUAtzQWZw7RjsKjgCjhwU55QGu4U1Szw": true, // Mayan Swift
	"AaDUBckQ6PEZUQqpc7JRqj33KCxKtnZ3uKvyaudsXvze": true, // Allbridge Core
	"DEbrdGj3HsRsAzx6uH4MKyREKxVAfBydijLUF3ygsFfh": true, // deBridge
}

// CEXAddresses are hot-wallet deposit addresses for major centralized
// exchanges, consolidated from the formerly-divergent per-service sets.
var CEXAddresses = map[string]bool{
	"5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9": true, // Binance hot wallet 1
	"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM": true, // Binance hot wallet 2
	"H8sMJSCQxfKiFTCfDR3DUMLPwcRbM61LGFJ8N4dK3WjS": true, // Coinbase
	"2AQdpHJ2JpcEgPiATUXjQxA8QmafFegfQwSLWSprPicm": true, // OKX
	"AC5RDfQFmDS1deWZos921JfqscXdByf8BKHs5ACWjtW2": true, // Bybit
	"FWznbcNXWQuHTawe9RxvQ2LdCENssh12dsznf4RiouN5": true, // Kraken
}

type labelEntry struct {
	label      string
	entityType EntityType
}

// KnownLabels maps an address to its human label and entity type.
var KnownLabels = buildKnownLabels()

func buildKnownLabels() map[string]labelEntry {
	m := map[string]labelEntry{
		SystemProgram:    {"System Program", EntitySystem},
		TokenProgram:     {"SPL Token Program", EntitySystem},
		Token2022Program: {"Token-2022 Program", EntitySystem},
		ATAProgram:       {"Associated Token Account Program", EntitySystem},
		MemoProgram:      {"Memo Program", EntitySystem},
		"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": {"Raydium AMM v4", EntityDEX},
		"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK": {"Raydium CLMM", EntityDEX},
		"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  {"Orca Whirlpool", EntityDEX},
		"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4": {"Jupiter Aggregator", EntityDEX},
		"EewxydAPCCVuNEyrVN68PuSYdQ7wKn27V9Gjeoi8dy3S": {"Pump.fun Bonding Curve", EntityLaunchpad},
		"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  {"Pump.fun Program", EntityLaunchpad},
		"M2mx93ekt1fmXSVkTrUL9xVFHkmME8HTUi5Cyc5aF7K":  {"Meteora DLMM", EntityDEX},
		"JitoDontFrontXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX": {"Jito MEV Tip Program", EntityMEV},
		"5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9": {"Binance Hot Wallet", EntityCEX},
		"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM": {"Binance Hot Wallet", EntityCEX},
		"H8sMJSCQxfKiFTCfDR3DUMLPwcRbM61LGFJ8N4dK3WjS": {"Coinbase", EntityCEX},
		"2AQdpHJ2JpcEgPiATUXjQxA8QmafFegfQwSLWSprPicm": {"OKX", EntityCEX},
		"AC5RDfQFmDS1deWZos921JfqscXdByf8BKHs5ACWjtW2": {"Bybit", EntityCEX},
		"FWznbcNXWQuHTawe9RxvQ2LdCENssh12dsznf4RiouN5": {"Kraken", EntityCEX},
		"worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth":  {"Wormhole Core Bridge", EntityBridge},
		"wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb":  {"Wormhole Token Bridge", EntityBridge},
		"WnFt12ZrnzZrFZkt2xsNsaNWoQribnuQ5B5FrDbwDhD":  {"Wormhole NFT Bridge", EntityBridge},
		"SwapsVeCiPHMUAtzQWZw7RjsKjgCjhwU55QGu4U1Szw": {"Mayan Swift", EntityBridge},
		"AaDUBckQ6PEZUQqpc7JRqj33KCxKtnZ3uKvyaudsXvze": {"Allbridge Core", EntityBridge},
		"DEbrdGj3HsRsAzx6uH4MKyREKxVAfBydijLUF3ygsFfh": {"deBridge", EntityBridge},
	}
	return m
}

// prefixLabels covers exchanges that rotate many deposit addresses sharing
// a recognizable prefix (cheaper than enumerating every hot wallet).
var prefixLabels = []struct {
	prefix     string
	label      string
	entityType EntityType
}{
	{"5tzFk", "Binance (prefix match)", EntityCEX},
}

// WalletInfo is the resolved identity of an address.
type WalletInfo struct {
	Address    string
	Label      string
	EntityType EntityType
	IsKnown    bool
}

// Short returns an abbreviated address for display, e.g. "5tzF...bhUv".
func (w WalletInfo) Short() string {
	return Short(w.Address)
}

// Short abbreviates a base58 address to its first/last 4 characters.
func Short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

// ClassifyAddress resolves an address's identity: exact match, then
// prefix heuristic, then "unknown wallet".
func ClassifyAddress(address string) WalletInfo {
	if entry, ok := KnownLabels[address]; ok {
		return WalletInfo{Address: address, Label: entry.label, EntityType: entry.entityType, IsKnown: true}
	}
	for _, p := range prefixLabels {
		if strings.HasPrefix(address, p.prefix) {
			return WalletInfo{Address: address, Label: p.label, EntityType: p.entityType, IsKnown: true}
		}
	}
	return WalletInfo{Address: address, Label: Short(address), EntityType: EntityWallet, IsKnown: false}
}

// IsBridgeProgram reports whether address is a known cross-chain bridge program.
func IsBridgeProgram(address string) bool {
	entry, ok := KnownLabels[address]
	return ok && entry.entityType == EntityBridge
}

// IsCEX reports whether address is a known centralized-exchange hot wallet.
func IsCEX(address string) bool {
	return CEXAddresses[address]
}

// IsLPProgram reports whether address is a known DEX/AMM liquidity program.
func IsLPProgram(address string) bool {
	return LPPrograms[address]
}

// IsSkipped reports whether address is a system/DEX/launchpad/MEV program
// that should never be traced as a forensic counterparty.
func IsSkipped(address string) bool {
	return SkipPrograms[address]
}

// LabelOrShort returns the known label for address, or its shortened form.
func LabelOrShort(address string) string {
	if entry, ok := KnownLabels[address]; ok {
		return entry.label
	}
	return Short(address)
}

func mergeSets(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k, v := range s {
			if v {
				out[k] = true
			}
		}
	}
	return out
}
