package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/models"
)

func TestBuildWalletAnalysisDirectTransferConfirmedTeam(t *testing.T) {
	pre := models.PreSellBehavior{}
	post := models.PostSellBehavior{SellDetected: true, DirectTransferToDeployer: true}

	wa := buildWalletAnalysis("WalletA", 1.5, pre, post)
	assert.Equal(t, models.VerdictConfirmedTeam, wa.Verdict)
	assert.Equal(t, []string{flagDirectTransferToDeployer}, wa.RedFlags)
}

func TestBuildWalletAnalysisPrefundedAndLinkedConfirmedTeam(t *testing.T) {
	pre := models.PreSellBehavior{PrefundSourceIsDeployer: true, PrefundSource: "Deployer"}
	post := models.PostSellBehavior{SellDetected: true, TransferToDeployerLinkedWallet: true}

	wa := buildWalletAnalysis("WalletB", 1.0, pre, post)
	assert.Equal(t, models.VerdictConfirmedTeam, wa.Verdict)
}

func TestBuildWalletAnalysisLinkedWithoutPrefundSuspectedTeam(t *testing.T) {
	pre := models.PreSellBehavior{}
	post := models.PostSellBehavior{SellDetected: true, TransferToDeployerLinkedWallet: true}

	wa := buildWalletAnalysis("WalletC", 1.0, pre, post)
	assert.Equal(t, models.VerdictSuspectedTeam, wa.Verdict)
}

func TestBuildWalletAnalysisManyFlagsCoordinatedDump(t *testing.T) {
	pre := models.PreSellBehavior{PrefundSourceIsKnownFunder: true, IsDormant: true}
	post := models.PostSellBehavior{SellDetected: true, IndirectViaIntermediary: true, CommonDestinationWithOtherBundles: true}

	wa := buildWalletAnalysis("WalletD", 1.0, pre, post)
	assert.Equal(t, models.VerdictCoordinatedDump, wa.Verdict)
	assert.GreaterOrEqual(t, len(wa.RedFlags), 3)
}

func TestBuildWalletAnalysisEarlyBuyer(t *testing.T) {
	wa := buildWalletAnalysis("WalletE", 0.5, models.PreSellBehavior{}, models.PostSellBehavior{})
	assert.Equal(t, models.VerdictEarlyBuyer, wa.Verdict)
	assert.Empty(t, wa.RedFlags)
}

func TestComputeCommonPrefundSource(t *testing.T) {
	pre := []models.PreSellBehavior{
		{PrefundSource: "Funder"},
		{PrefundSource: "Funder"},
		{PrefundSource: "Other"},
	}
	assert.Equal(t, "Funder", computeCommonPrefundSource(pre))
}

func TestComputeCommonSinksRequiresTwoWallets(t *testing.T) {
	posts := []models.PostSellBehavior{
		{FundDestinations: []models.FundDestination{{Destination: "Sink1"}}},
		{FundDestinations: []models.FundDestination{{Destination: "Sink1"}}},
		{FundDestinations: []models.FundDestination{{Destination: "OnlyMine"}}},
	}
	sinks := computeCommonSinks(posts)
	assert.True(t, sinks["Sink1"])
	assert.False(t, sinks["OnlyMine"])
}

func TestBackfillCrossWalletMarksKnownFunderAndCommonSink(t *testing.T) {
	pre := []models.PreSellBehavior{{PrefundSource: "Funder"}, {PrefundSource: "Funder"}}
	posts := []models.PostSellBehavior{
		{FundDestinations: []models.FundDestination{{Destination: "Sink1"}}},
		{FundDestinations: []models.FundDestination{{Destination: "Sink1"}}},
	}
	backfillCrossWallet(pre, posts, "Funder", computeCommonSinks(posts))

	assert.True(t, pre[0].PrefundSourceIsKnownFunder)
	assert.True(t, posts[0].CommonDestinationWithOtherBundles)
	assert.True(t, posts[0].FundDestinations[0].SeenInOtherBundles)
}

func TestCoordinatedSellDetectedRequiresThreeWithinWindow(t *testing.T) {
	slot := func(s uint64) *uint64 { return &s }
	within := []models.PostSellBehavior{
		{SellDetected: true, SellSlot: slot(100)},
		{SellDetected: true, SellSlot: slot(102)},
		{SellDetected: true, SellSlot: slot(104)},
	}
	assert.True(t, coordinatedSellDetected(within))

	apart := []models.PostSellBehavior{
		{SellDetected: true, SellSlot: slot(100)},
		{SellDetected: true, SellSlot: slot(200)},
		{SellDetected: true, SellSlot: slot(300)},
	}
	assert.False(t, coordinatedSellDetected(apart))
}

func TestAggregateConfirmedTeamExtraction(t *testing.T) {
	analyses := []models.BundleWalletAnalysis{
		{
			Wallet:   "W1",
			PreSell:  models.PreSellBehavior{PrefundSourceIsDeployer: true, PrefundSource: "Dep"},
			PostSell: models.PostSellBehavior{SellDetected: true, DirectTransferToDeployer: true, SOLReceivedFromSell: 10},
			Verdict:  models.VerdictConfirmedTeam,
		},
		{
			Wallet:   "W2",
			PreSell:  models.PreSellBehavior{},
			PostSell: models.PostSellBehavior{},
			Verdict:  models.VerdictEarlyBuyer,
		},
	}
	report := aggregate("MintX", "Dep", 1000, analyses, "", false)
	require.NotNil(t, report)
	assert.Equal(t, models.OverallConfirmedTeamExtraction, report.OverallVerdict)
	assert.Equal(t, []string{"W1"}, report.ConfirmedTeamWallets)
	assert.Equal(t, []string{"W2"}, report.EarlyBuyerWallets)
	assert.InDelta(t, 10.0, report.TotalSOLExtractedConfirmed, 1e-9)
}

func TestAggregateCoordinatedDumpUnknownTeam(t *testing.T) {
	analyses := []models.BundleWalletAnalysis{
		{Wallet: "W1", Verdict: models.VerdictCoordinatedDump},
		{Wallet: "W2", Verdict: models.VerdictCoordinatedDump},
	}
	report := aggregate("MintY", "Dep", 2000, analyses, "", true)
	assert.Equal(t, models.OverallCoordinatedDumpUnknownTeam, report.OverallVerdict)
	assert.True(t, report.CoordinatedSellDetected)
}

func TestAggregateEarlyBuyersNoLinkProven(t *testing.T) {
	analyses := []models.BundleWalletAnalysis{
		{Wallet: "W1", Verdict: models.VerdictEarlyBuyer},
		{Wallet: "W2", Verdict: models.VerdictEarlyBuyer},
	}
	report := aggregate("MintZ", "Dep", 3000, analyses, "", false)
	assert.Equal(t, models.OverallEarlyBuyersNoLinkProven, report.OverallVerdict)
	assert.Len(t, report.EarlyBuyerWallets, 2)
}
