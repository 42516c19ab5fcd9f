package solflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/models"
)

func TestBuildReportTerminalWalletsAndCEXDetection(t *testing.T) {
	var binance string
	for addr := range labels.CEXAddresses {
		binance = addr
		break
	}
	require.NotEmpty(t, binance, "expected at least one known CEX address")

	bt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	edges := []models.SolFlowEdge{
		{Mint: "M", FromAddress: "Deployer", ToAddress: "WalletX", AmountSOL: 12, Hop: 0, BlockTime: &bt},
		{Mint: "M", FromAddress: "WalletX", ToAddress: binance, AmountSOL: 11.5, Hop: 1},
	}
	tr := &Tracer{}
	report := tr.buildReport(context.Background(), "M", "Deployer", edges, &bt)

	assert.Equal(t, 2, report.HopCount)
	assert.True(t, report.KnownCEXDetected)
	assert.Contains(t, report.TerminalWallets, binance)
	assert.NotContains(t, report.TerminalWallets, "WalletX")
	assert.InDelta(t, 12.0, report.TotalExtractedSOL, 1e-9)
}

func TestResolveCrossChainExitsQueriesBridgeAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"operations":[{"content":{"standarizedProperties":{"toChain":2,"toAddress":"0xdead"}}}]}`))
	}))
	defer srv.Close()

	bridgeClient := httpshell.NewClient(httpshell.Settings{Name: "bridge-test", RateLimitPerSecond: 1000, FailureThreshold: 10, RecoveryTimeout: time.Second})
	tr := &Tracer{bridge: bridgeClient, bridgeBase: srv.URL}

	var wormholeCore string
	for addr := range labels.BridgePrograms {
		wormholeCore = addr
		break
	}
	edges := []models.SolFlowEdge{{FromAddress: "Wallet1", ToAddress: wormholeCore}}

	exits := tr.resolveCrossChainExits(context.Background(), edges)
	require.Len(t, exits, 1)
	assert.Equal(t, "Wallet1", exits[0].Wallet)
	assert.Equal(t, "0xdead", exits[0].ToAddress)
}

func TestResolveCrossChainExitsSkipsWithoutBridgeBase(t *testing.T) {
	tr := &Tracer{}
	exits := tr.resolveCrossChainExits(context.Background(), []models.SolFlowEdge{{ToAddress: "X"}})
	assert.Nil(t, exits)
}
