package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CacheSet("k1", "v1", time.Minute))
	v, ok, err := s.CacheGet("k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestCacheExpiry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CacheSet("k1", "v1", -time.Minute))
	_, ok, err := s.CacheGet("k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordAndQueryEventsByDeployer(t *testing.T) {
	s := newTestStore(t)
	ev := models.TokenEvent{
		EventType: models.EventTokenCreated,
		Mint:      "mintA",
		Deployer:  "deployerX",
		Name:      "Foo",
		CreatedAt: time.Now().UTC(),
		Extra:     map[string]interface{}{"foo": "bar"},
	}
	require.NoError(t, s.RecordEvent(ev))
	events, err := s.EventsByDeployer("deployerX")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "mintA", events[0].Mint)
	assert.Equal(t, "bar", events[0].Extra["foo"])
}

func TestSolFlowBatchIdempotent(t *testing.T) {
	s := newTestStore(t)
	edges := []models.SolFlowEdge{
		{Mint: "m1", FromAddress: "a", ToAddress: "b", AmountLamports: 1_000_000_000, Signature: "sig1", Slot: 10, Hop: 0},
	}
	require.NoError(t, s.InsertSolFlowBatch(edges))
	require.NoError(t, s.InsertSolFlowBatch(edges))

	got, err := s.SolFlowEdgesByMint("m1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].AmountSOL)
}

func TestCartelEdgeUpsertKeepsMaxStrength(t *testing.T) {
	s := newTestStore(t)
	e := models.CartelEdge{WalletA: "w2", WalletB: "w1", SignalType: models.SignalSolTransfer, SignalStrength: 0.3}
	require.NoError(t, s.UpsertCartelEdge(e))
	e.SignalStrength = 0.1
	require.NoError(t, s.UpsertCartelEdge(e))

	edges, err := s.CartelEdgesForWallets([]string{"w1"})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 0.3, edges[0].SignalStrength)
	assert.Equal(t, "w1", edges[0].WalletA)
	assert.Equal(t, "w2", edges[0].WalletB)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Subscribe(100, models.SubTypeDeployer, "dep1"))
	subs, err := s.ListSubscriptions(models.SubTypeDeployer)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	require.NoError(t, s.Unsubscribe(100, models.SubTypeDeployer, "dep1"))
	subs, err = s.ListSubscriptions(models.SubTypeDeployer)
	require.NoError(t, err)
	assert.Len(t, subs, 0)
}

func TestBundleReportCacheTTL(t *testing.T) {
	s := newTestStore(t)
	report := models.BundleExtractionReport{Mint: "m1", OverallVerdict: models.OverallEarlyBuyersNoLinkProven}
	require.NoError(t, s.BundleReportPut(report))

	got, ok, err := s.BundleReportGet("m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.OverallVerdict, got.OverallVerdict)
}

func TestRugSweepCandidatesExcludesAlreadyRugged(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordEvent(models.TokenEvent{
		EventType: models.EventTokenCreated, Mint: "ruggedMint", Deployer: "d1", LiqUSD: 1000,
	}))
	require.NoError(t, s.RecordEvent(models.TokenEvent{
		EventType: models.EventTokenRugged, Mint: "ruggedMint", Deployer: "d1",
	}))
	require.NoError(t, s.RecordEvent(models.TokenEvent{
		EventType: models.EventTokenCreated, Mint: "liveMint", Deployer: "d2", LiqUSD: 1000,
	}))

	candidates, err := s.RugSweepCandidates(500, 48*time.Hour, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "liveMint", candidates[0].Mint)
}

func TestDeployersWithAtLeastTokens(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordEvent(models.TokenEvent{EventType: models.EventTokenCreated, Mint: "m1", Deployer: "prolific"}))
	require.NoError(t, s.RecordEvent(models.TokenEvent{EventType: models.EventTokenCreated, Mint: "m2", Deployer: "prolific"}))
	require.NoError(t, s.RecordEvent(models.TokenEvent{EventType: models.EventTokenCreated, Mint: "m3", Deployer: "single"}))

	deployers, err := s.DeployersWithAtLeastTokens(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"prolific"}, deployers)
}

func TestPurgeExpiredCache(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CacheSet("stale", "v", -time.Minute))
	require.NoError(t, s.CacheSet("fresh", "v", time.Hour))

	n, err := s.PurgeExpiredCache()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := s.CacheGet("fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateEventExtraMerges(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordEvent(models.TokenEvent{
		EventType: models.EventTokenCreated, Mint: "m1", Deployer: "d1", Extra: map[string]interface{}{"a": 1.0},
	}))
	require.NoError(t, s.UpdateEventExtra("m1", "d1", map[string]interface{}{"lp_providers": []interface{}{"w1", "w2"}}))

	events, err := s.EventsByMint("m1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].Extra["lp_providers"])
}

func TestOperatorMappingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertOperatorMapping("fp1", "walletA"))
	require.NoError(t, s.UpsertOperatorMapping("fp1", "walletB"))
	require.NoError(t, s.UpsertOperatorMapping("fp1", "walletA"))

	wallets, err := s.WalletsForFingerprint("fp1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"walletA", "walletB"}, wallets)
}
