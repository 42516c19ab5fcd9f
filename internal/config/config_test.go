package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"SOLANA_RPC_ENDPOINT", "WEIGHT_NAME", "WEIGHT_SYMBOL", "WEIGHT_IMAGE",
		"WEIGHT_DEPLOYER", "WEIGHT_TEMPORAL", "SOL_TRACE_MAX_HOPS",
	} {
		os.Unsetenv(k)
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.SolanaRPCEndpoint)
	assert.Equal(t, 3, cfg.SolTraceMaxHops)
	assert.Equal(t, int64(100_000_000), cfg.MinTransferLamports)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := &Config{
		SolanaRPCEndpoint: "x",
		WeightName:        0.5,
		WeightSymbol:       0.5,
		WeightImage:        0.5,
		WeightDeployer:     0.5,
		WeightTemporal:     0.5,
		SolTraceMaxHops:    1,
	}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestEnvIntFallsBackOnGarbage(t *testing.T) {
	os.Setenv("TEST_ENV_INT_GARBAGE", "not-a-number")
	defer os.Unsetenv("TEST_ENV_INT_GARBAGE")
	assert.Equal(t, 42, envInt("TEST_ENV_INT_GARBAGE", 42))
}

func TestSplitTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTrim(" a , b ,,"))
	assert.Nil(t, splitTrim(""))
}
