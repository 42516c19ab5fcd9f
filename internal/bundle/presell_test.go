package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/rpcclient"
)

func fakeTx(accounts []string, balanceDeltas []int64) *rpcclient.Transaction {
	var tx rpcclient.Transaction
	for i, a := range accounts {
		tx.Transaction.Message.AccountKeys = append(tx.Transaction.Message.AccountKeys, rpcclient.AccountKey{Pubkey: a})
		tx.Meta.PreBalances = append(tx.Meta.PreBalances, 1_000_000_000)
		tx.Meta.PostBalances = append(tx.Meta.PostBalances, 1_000_000_000+balanceDeltas[i])
	}
	return &tx
}

func TestLargestIncomingTransferFindsFunder(t *testing.T) {
	tx := fakeTx([]string{"Wallet", "Funder"}, []int64{5_000_000_000, -5_000_100_000})
	src, lamports, ok := largestIncomingTransfer(tx, "Wallet", minPrefundLamports)
	require.True(t, ok)
	assert.Equal(t, "Funder", src)
	assert.Equal(t, int64(5_000_000_000), lamports)
}

func TestLargestIncomingTransferBelowThreshold(t *testing.T) {
	tx := fakeTx([]string{"Wallet", "Other"}, []int64{-100, 100})
	_, _, ok := largestIncomingTransfer(tx, "Wallet", minPrefundLamports)
	assert.False(t, ok)
}

func TestLargestIncomingTransferNoIncomingTransfer(t *testing.T) {
	tx := fakeTx([]string{"Wallet", "Other"}, []int64{-5_000_000_000, 0})
	_, _, ok := largestIncomingTransfer(tx, "Wallet", minPrefundLamports)
	assert.False(t, ok)
}

func TestWalletSoldOutDetectsFullExit(t *testing.T) {
	tx := &rpcclient.Transaction{}
	tx.Meta.PreTokenBalances = []rpcclient.TokenBalance{{Owner: "Wallet", Mint: "Mint"}}
	tx.Meta.PreTokenBalances[0].UiTokenAmount.UiAmount = 1000
	tx.Meta.PostTokenBalances = []rpcclient.TokenBalance{{Owner: "Wallet", Mint: "Mint"}}
	tx.Meta.PostTokenBalances[0].UiTokenAmount.UiAmount = 0

	assert.True(t, walletSoldOut(tx, "Wallet", "Mint"))
}

func TestWalletSoldOutIgnoresPartialSell(t *testing.T) {
	tx := &rpcclient.Transaction{}
	tx.Meta.PreTokenBalances = []rpcclient.TokenBalance{{Owner: "Wallet", Mint: "Mint"}}
	tx.Meta.PreTokenBalances[0].UiTokenAmount.UiAmount = 1000
	tx.Meta.PostTokenBalances = []rpcclient.TokenBalance{{Owner: "Wallet", Mint: "Mint"}}
	tx.Meta.PostTokenBalances[0].UiTokenAmount.UiAmount = 600

	assert.False(t, walletSoldOut(tx, "Wallet", "Mint"))
}
