package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAddressKnown(t *testing.T) {
	info := ClassifyAddress(SystemProgram)
	require.True(t, info.IsKnown)
	assert.Equal(t, EntitySystem, info.EntityType)
	assert.Equal(t, "System Program", info.Label)
}

func TestClassifyAddressUnknown(t *testing.T) {
	addr := "Fg6PaFpoGXkYsidMpWxTWqeyh68E6hXiPfxpzhrK2bsq"
	info := ClassifyAddress(addr)
	assert.False(t, info.IsKnown)
	assert.Equal(t, EntityWallet, info.EntityType)
	assert.Equal(t, Short(addr), info.Label)
}

func TestIsSkippedCoversSystemAndDEX(t *testing.T) {
	assert.True(t, IsSkipped(SystemProgram))
	assert.True(t, IsSkipped("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"))
	assert.False(t, IsSkipped("Fg6PaFpoGXkYsidMpWxTWqeyh68E6hXiPfxpzhrK2bsq"))
}

func TestIsCEX(t *testing.T) {
	for addr := range CEXAddresses {
		assert.True(t, IsCEX(addr))
	}
	assert.False(t, IsCEX(SystemProgram))
}

func TestShortAbbreviatesLongAddresses(t *testing.T) {
	addr := "5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9"
	short := Short(addr)
	assert.Equal(t, addr[:4]+"..."+addr[len(addr)-4:], short)
}

func TestShortLeavesShortStringsUntouched(t *testing.T) {
	assert.Equal(t, "abc", Short("abc"))
}

func TestIsBridgeProgram(t *testing.T) {
	assert.True(t, IsBridgeProgram("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth"))
	assert.True(t, IsBridgeProgram("DEbrdGj3HsRsAzx6uH4MKyREKxVAfBydijLUF3ygsFfh"))
	assert.False(t, IsBridgeProgram(SystemProgram))
}

func TestIsLPProgram(t *testing.T) {
	assert.True(t, IsLPProgram("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"))
	assert.True(t, IsLPProgram("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"))
	assert.False(t, IsLPProgram(SystemProgram))
}
