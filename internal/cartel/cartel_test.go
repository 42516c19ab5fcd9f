package cartel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommunityConfidenceTiers(t *testing.T) {
	assert.Equal(t, models.ConfidenceHigh, communityConfidence(2, 3))
	assert.Equal(t, models.ConfidenceHigh, communityConfidence(3, 5))
	assert.Equal(t, models.ConfidenceMedium, communityConfidence(2, 2))
	assert.Equal(t, models.ConfidenceMedium, communityConfidence(1, 2))
	assert.Equal(t, models.ConfidenceLow, communityConfidence(1, 1))
}

func TestCommunityIDDeterministicAndOrderSensitiveInput(t *testing.T) {
	a := communityID([]string{"Alice", "Bob", "Carl"})
	b := communityID([]string{"Alice", "Bob", "Carl"})
	assert.Equal(t, a, b)

	c := communityID([]string{"Alice", "Bob"})
	assert.NotEqual(t, a, c)
}

func TestEdgeKeyNormalizesOrder(t *testing.T) {
	assert.Equal(t, edgeKey(1, 2), edgeKey(2, 1))
}

func TestConnectedComponentsFallbackGroupsLinkedWallets(t *testing.T) {
	ids := []int64{0, 1, 2, 3}
	idOf := map[string]int64{"A": 0, "B": 1, "C": 2, "D": 3}
	edges := []models.CartelEdge{
		{WalletA: "A", WalletB: "B", SignalType: models.SignalSolTransfer, SignalStrength: 0.5},
		{WalletA: "B", WalletB: "C", SignalType: models.SignalTimingSync, SignalStrength: 0.3},
	}
	partition := connectedComponents(ids, edges, idOf)

	assert.ElementsMatch(t, []int64{0, 1, 2}, partition[0])
	assert.ElementsMatch(t, []int64{3}, partition[3])
}

func TestTokenPhashesParsesHexAndSkipsMissing(t *testing.T) {
	events := []models.TokenEvent{
		{EventType: models.EventTokenCreated, Mint: "MintA", Extra: map[string]interface{}{"phash": "00000000000000ff"}},
		{EventType: models.EventTokenCreated, Mint: "MintB", Extra: map[string]interface{}{}},
		{EventType: models.EventTokenRugged, Mint: "MintC", Extra: map[string]interface{}{"phash": "ff00000000000000"}},
	}
	hashes := tokenPhashes(events)
	require.Len(t, hashes, 1)
	assert.Equal(t, uint64(0xff), hashes["MintA"])
}

func TestRunDNAMatchGlobalEmitsPairwiseEdges(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertOperatorMapping("fp1", "WalletA"))
	require.NoError(t, s.UpsertOperatorMapping("fp1", "WalletB"))
	require.NoError(t, s.UpsertOperatorMapping("fp1", "WalletC"))

	b := New(nil, s, DefaultConfig())
	require.NoError(t, b.RunDNAMatchGlobal(context.Background()))

	edges, err := s.CartelEdgesForWallets([]string{"WalletA"})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, models.SignalDNAMatch, e.SignalType)
		assert.Equal(t, 0.95, e.SignalStrength)
	}
}

func TestCommunityReturnsNoCommunityBelowTwoWallets(t *testing.T) {
	s := newTestStore(t)
	b := New(nil, s, DefaultConfig())
	report, err := b.Community(context.Background(), "Mint1", "SoloWallet")
	require.NoError(t, err)
	assert.Nil(t, report.DeployerCommunity)
}

func TestCommunityAggregatesEgoNetwork(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertCartelEdge(models.CartelEdge{
		WalletA: "Deployer", WalletB: "Ally", SignalType: models.SignalSolTransfer, SignalStrength: 0.9,
		Evidence: map[string]interface{}{"amount_sol": 5.0},
	}))
	require.NoError(t, s.RecordEvent(models.TokenEvent{EventType: models.EventTokenCreated, Mint: "M1", Deployer: "Deployer"}))
	require.NoError(t, s.RecordEvent(models.TokenEvent{EventType: models.EventTokenCreated, Mint: "M2", Deployer: "Ally"}))

	b := New(nil, s, DefaultConfig())
	report, err := b.Community(context.Background(), "M1", "Deployer")
	require.NoError(t, err)
	require.NotNil(t, report.DeployerCommunity)
	assert.ElementsMatch(t, []string{"Deployer", "Ally"}, report.DeployerCommunity.Wallets)
	assert.Equal(t, 2, report.DeployerCommunity.TotalTokensLaunched)
	assert.Equal(t, models.SignalSolTransfer, report.DeployerCommunity.StrongestSignal)
}
