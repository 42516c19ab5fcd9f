package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineage-agent/forensics/internal/httpshell"
)

func TestValidateAddress(t *testing.T) {
	assert.True(t, ValidateAddress("So11111111111111111111111111111111111111112"))
	assert.False(t, ValidateAddress("not-a-valid-address"))
}

func TestAccountKeyUnmarshalBothShapes(t *testing.T) {
	var a AccountKey
	require.NoError(t, json.Unmarshal([]byte(`"abc123"`), &a))
	assert.Equal(t, "abc123", a.Pubkey)

	var b AccountKey
	require.NoError(t, json.Unmarshal([]byte(`{"pubkey":"xyz","signer":true,"writable":false}`), &b))
	assert.Equal(t, "xyz", b.Pubkey)
	assert.True(t, b.Signer)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpshell.NewClient(httpshell.Settings{Name: "test-rpc", RateLimitPerSecond: 1000, FailureThreshold: 10, RecoveryTimeout: time.Second})
	return New(srv.URL, hc)
}

func TestGetOldestSignaturePaginatesUntilShortPage(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var sigs []Signature
		if calls == 1 {
			for i := 0; i < 1000; i++ {
				sigs = append(sigs, Signature{Signature: "sig-page1-" + string(rune(i))})
			}
		} else {
			sigs = []Signature{{Signature: "oldest-sig"}}
		}
		resp := struct {
			Result []Signature `json:"result"`
		}{Result: sigs}
		json.NewEncoder(w).Encode(resp)
	})

	oldest, err := c.GetOldestSignature(context.Background(), "SomeMintAddress")
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, "oldest-sig", oldest.Signature)
	assert.Equal(t, 2, calls)
}

func TestGetTokenAccountsByOwnerFiltersZeroBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := `{"result":{"value":[
			{"pubkey":"acc1","account":{"data":{"parsed":{"info":{"mint":"mintA","tokenAmount":{"uiAmount":5.0}}}}}},
			{"pubkey":"acc2","account":{"data":{"parsed":{"info":{"mint":"mintB","tokenAmount":{"uiAmount":0.0}}}}}}
		]}}`
		w.Write([]byte(body))
	})

	holdings, err := c.GetDeployerTokenHoldings(context.Background(), "wallet1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mintA"}, holdings)
}

func TestGetEarliestSignaturesReturnsChronologicalOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		sigs := []Signature{{Signature: "newer"}, {Signature: "older"}}
		resp := struct {
			Result []Signature `json:"result"`
		}{Result: sigs}
		json.NewEncoder(w).Encode(resp)
	})

	earliest, err := c.GetEarliestSignatures(context.Background(), "mintA", 5, 25)
	require.NoError(t, err)
	require.Len(t, earliest, 2)
	assert.Equal(t, "older", earliest[0].Signature)
	assert.Equal(t, "newer", earliest[1].Signature)
}

func TestGetTokenLargestAccounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := `{"result":{"value":[
			{"address":"holder1","uiAmount":500000.0,"amount":"500000000000"},
			{"address":"holder2","uiAmount":100000.0,"amount":"100000000000"}
		]}}`
		w.Write([]byte(body))
	})

	accounts, err := c.GetTokenLargestAccounts(context.Background(), "mintA")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "holder1", accounts[0].Address)
	assert.Equal(t, 500000.0, accounts[0].UiAmount)
}

func TestCallReturnsRPCError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":-32000,"message":"boom"}}`))
	})
	_, err := c.GetTransaction(context.Background(), "sig1")
	assert.Error(t, err)
}
