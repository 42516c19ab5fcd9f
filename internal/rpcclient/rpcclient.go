// Package rpcclient is a typed wrapper over Solana JSON-RPC, built on top
// of httpshell for retry/breaker/rate-limit behavior. It exposes exactly
// the methods the forensic pipeline depends on rather than the full RPC
// surface, matching the teacher's scanner package's habit of wrapping only
// what it calls instead of adopting a full SDK client wholesale.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/labels"
)

// Client is a stateless Solana JSON-RPC client apart from an incrementing
// request-id counter and the shared httpshell.Client connection.
type Client struct {
	http     *httpshell.Client
	endpoint string
	nextID   int64
}

// New builds a Client over the given endpoint, using http for retry/
// breaker/rate-limit behavior.
func New(endpoint string, http *httpshell.Client) *Client {
	return &Client{http: http, endpoint: endpoint}
}

// ValidateAddress reports whether addr is a well-formed base58 Solana
// public key, using solana-go's own parser rather than a hand-rolled check.
func ValidateAddress(addr string) bool {
	_, err := solana.PublicKeyFromBase58(addr)
	return err == nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call drives every typed method below. circuitProtect controls whether
// the shared RPC breaker gates this call — optional DAS enrichment bypasses
// it so its flakiness can't trip the breaker for critical signature walks.
func (c *Client) call(ctx context.Context, method string, params []interface{}, circuitProtect bool, out interface{}) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddInt64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	}
	var resp rpcResponse
	if err := c.http.PostJSON(ctx, c.endpoint, req, &resp, circuitProtect); err != nil {
		return fmt.Errorf("rpcclient: %s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("rpcclient: %s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("rpcclient: %s: decode result: %w", method, err)
	}
	return nil
}

// Signature is one entry from getSignaturesForAddress.
type Signature struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetSignaturesForAddress pages backwards from `before` (empty for the
// newest page), newest-first, up to `limit` entries (capped at 1000).
func (c *Client) GetSignaturesForAddress(ctx context.Context, address, before string, limit int) ([]Signature, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	opts := map[string]interface{}{"limit": limit}
	if before != "" {
		opts["before"] = before
	}
	var sigs []Signature
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address, opts}, true, &sigs); err != nil {
		return nil, err
	}
	return sigs, nil
}

// GetOldestSignature walks getSignaturesForAddress backwards by setting
// `before` to the last signature of each page, terminating when a page
// holds fewer than 1000 entries or after 10 pages, returning the tail
// entry of the final page (the oldest signature observed).
func (c *Client) GetOldestSignature(ctx context.Context, address string) (*Signature, error) {
	const maxPages = 10
	var before string
	var last *Signature

	for page := 0; page < maxPages; page++ {
		sigs, err := c.GetSignaturesForAddress(ctx, address, before, 1000)
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			break
		}
		tail := sigs[len(sigs)-1]
		last = &tail
		before = tail.Signature
		if len(sigs) < 1000 {
			break
		}
	}
	return last, nil
}

// GetEarliestSignatures walks getSignaturesForAddress backwards up to
// maxPages pages of 1000, then returns up to `want` of the very earliest
// signatures observed, in chronological (oldest-first) order. Used to
// discover the transactions immediately surrounding a mint's creation
// without having to enumerate the entire signature history forward.
func (c *Client) GetEarliestSignatures(ctx context.Context, address string, maxPages, want int) ([]Signature, error) {
	var before string
	var allPages [][]Signature

	for page := 0; page < maxPages; page++ {
		sigs, err := c.GetSignaturesForAddress(ctx, address, before, 1000)
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			break
		}
		allPages = append(allPages, sigs)
		before = sigs[len(sigs)-1].Signature
		if len(sigs) < 1000 {
			break
		}
	}
	if len(allPages) == 0 {
		return nil, nil
	}

	oldestPage := allPages[len(allPages)-1]
	start := len(oldestPage) - want
	if start < 0 {
		start = 0
	}
	earliest := oldestPage[start:]

	out := make([]Signature, len(earliest))
	for i, s := range earliest {
		out[len(earliest)-1-i] = s
	}
	return out, nil
}

// AccountKey is a tagged union for legacy-string or jsonParsed-object
// account key entries in a parsed transaction's accountKeys list.
type AccountKey struct {
	Pubkey   string
	Signer   bool
	Writable bool
}

// UnmarshalJSON accepts either a bare base58 string or a
// {pubkey,signer,writable} object, matching Solana's legacy vs jsonParsed
// transaction encodings.
func (a *AccountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Pubkey = s
		return nil
	}
	var obj struct {
		Pubkey   string `json:"pubkey"`
		Signer   bool   `json:"signer"`
		Writable bool   `json:"writable"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("rpcclient: account key neither string nor object: %w", err)
	}
	a.Pubkey = obj.Pubkey
	a.Signer = obj.Signer
	a.Writable = obj.Writable
	return nil
}

// TokenBalance is a parsed pre/post token balance entry.
type TokenBalance struct {
	AccountIndex int    `json:"accountIndex"`
	Mint         string `json:"mint"`
	Owner        string `json:"owner"`
	UiTokenAmount struct {
		UiAmount float64 `json:"uiAmount"`
		Amount   string  `json:"amount"`
	} `json:"uiTokenAmount"`
}

// Transaction is the subset of a jsonParsed getTransaction response the
// pipeline needs: account keys, lamport balance deltas, and token balances.
type Transaction struct {
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      struct {
		Err           interface{}    `json:"err"`
		PreBalances   []int64        `json:"preBalances"`
		PostBalances  []int64        `json:"postBalances"`
		PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
		PostTokenBalances []TokenBalance `json:"postTokenBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []AccountKey `json:"accountKeys"`
		} `json:"message"`
		Signatures []string `json:"signatures"`
	} `json:"transaction"`
}

// BalanceDelta returns post-pre lamports for account index i, or 0 if out
// of range.
func (t *Transaction) BalanceDelta(i int) int64 {
	if i < 0 || i >= len(t.Meta.PreBalances) || i >= len(t.Meta.PostBalances) {
		return 0
	}
	return t.Meta.PostBalances[i] - t.Meta.PreBalances[i]
}

// Signer returns the pubkey of account index i.
func (t *Transaction) AccountAt(i int) string {
	if i < 0 || i >= len(t.Transaction.Message.AccountKeys) {
		return ""
	}
	return t.Transaction.Message.AccountKeys[i].Pubkey
}

// GetTransaction fetches a jsonParsed transaction.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	opts := map[string]interface{}{
		"encoding":                       "jsonParsed",
		"maxSupportedTransactionVersion": 0,
	}
	var tx Transaction
	if err := c.call(ctx, "getTransaction", []interface{}{signature, opts}, true, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetDeployerAndTimestamp combines the oldest signature for mint with its
// parsed transaction, returning the first signer that is not a known
// program/authority, and the block time as the creation timestamp.
func (c *Client) GetDeployerAndTimestamp(ctx context.Context, mint string) (deployer string, createdAt time.Time, err error) {
	oldest, err := c.GetOldestSignature(ctx, mint)
	if err != nil {
		return "", time.Time{}, err
	}
	if oldest == nil {
		return "", time.Time{}, fmt.Errorf("rpcclient: no signatures found for %s", mint)
	}
	tx, err := c.GetTransaction(ctx, oldest.Signature)
	if err != nil {
		return "", time.Time{}, err
	}
	for _, key := range tx.Transaction.Message.AccountKeys {
		if !key.Signer {
			continue
		}
		if labels.IsSkipped(key.Pubkey) {
			continue
		}
		deployer = key.Pubkey
		break
	}
	if deployer == "" {
		return "", time.Time{}, fmt.Errorf("rpcclient: no non-program signer found for %s", mint)
	}
	if tx.BlockTime != nil {
		createdAt = time.Unix(*tx.BlockTime, 0).UTC()
	} else if oldest.BlockTime != nil {
		createdAt = time.Unix(*oldest.BlockTime, 0).UTC()
	}
	return deployer, createdAt, nil
}

// TokenAccount is one entry from getTokenAccountsByOwner.
type TokenAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data struct {
			Parsed struct {
				Info struct {
					Mint        string `json:"mint"`
					TokenAmount struct {
						UiAmount float64 `json:"uiAmount"`
					} `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}

// GetTokenAccountsByOwner lists every SPL token account owned by wallet.
// This backs both GetWalletTokenBalance and GetDeployerTokenHoldings —
// the original's get_token_accounts/holder-enumeration method is, per
// the Python source, just this standard RPC call filtered to the SPL
// Token program id.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, wallet string) ([]TokenAccount, error) {
	filter := map[string]interface{}{"programId": labels.TokenProgram}
	opts := map[string]interface{}{"encoding": "jsonParsed"}
	var result struct {
		Value []TokenAccount `json:"value"`
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", []interface{}{wallet, filter, opts}, true, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// GetWalletTokenBalance sums uiAmount over every token account wallet
// holds for mint; returns 0 if the wallet fully exited.
func (c *Client) GetWalletTokenBalance(ctx context.Context, wallet, mint string) (float64, error) {
	accounts, err := c.GetTokenAccountsByOwner(ctx, wallet)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, acc := range accounts {
		if acc.Account.Data.Parsed.Info.Mint == mint {
			total += acc.Account.Data.Parsed.Info.TokenAmount.UiAmount
		}
	}
	return total, nil
}

// GetDeployerTokenHoldings lists mint addresses wallet currently holds
// with a non-zero balance.
func (c *Client) GetDeployerTokenHoldings(ctx context.Context, wallet string) ([]string, error) {
	accounts, err := c.GetTokenAccountsByOwner(ctx, wallet)
	if err != nil {
		return nil, err
	}
	var mints []string
	for _, acc := range accounts {
		if acc.Account.Data.Parsed.Info.TokenAmount.UiAmount > 0 {
			mints = append(mints, acc.Account.Data.Parsed.Info.Mint)
		}
	}
	return mints, nil
}

// LargestAccount is one entry from getTokenLargestAccounts.
type LargestAccount struct {
	Address  string `json:"address"`
	UiAmount float64 `json:"uiAmount"`
	Amount   string  `json:"amount"`
}

// GetTokenLargestAccounts returns up to 20 of the largest holder accounts
// for mint, used by the On-Chain Risk derivation to compute top10/top1
// holder concentration. The RPC call itself is capped at 20 by Solana and
// does not support an offset, so concentration figures are an upper bound
// on the true top-N holder share when supply is spread across many wallets.
func (c *Client) GetTokenLargestAccounts(ctx context.Context, mint string) ([]LargestAccount, error) {
	var result struct {
		Value []LargestAccount `json:"value"`
	}
	if err := c.call(ctx, "getTokenLargestAccounts", []interface{}{mint}, true, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// Asset is the subset of a DAS getAsset response the pipeline uses.
type Asset struct {
	Content struct {
		JsonURI string `json:"json_uri"`
		Links   struct {
			Image string `json:"image"`
		} `json:"links"`
	} `json:"content"`
	Creators []struct {
		Address  string `json:"address"`
		Verified bool   `json:"verified"`
	} `json:"creators"`
}

// GetAsset queries the Digital Asset Standard API for verified creators
// and image links for mint. Its absence must not break the pipeline —
// callers treat a non-nil error as "DAS unavailable" and fall back to RPC.
func (c *Client) GetAsset(ctx context.Context, mint string) (*Asset, error) {
	var asset Asset
	if err := c.call(ctx, "getAsset", []interface{}{map[string]interface{}{"id": mint}}, true, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// SearchAssetsByCreator is optional DAS enrichment and MUST bypass the
// shared RPC breaker so its flakiness cannot open the breaker for the
// critical signature-walk calls.
func (c *Client) SearchAssetsByCreator(ctx context.Context, creator string) ([]Asset, error) {
	var result struct {
		Items []Asset `json:"items"`
	}
	err := c.call(ctx, "searchAssets", []interface{}{map[string]interface{}{"creatorAddress": creator}}, false, &result)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}
