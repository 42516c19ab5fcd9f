// Package market wraps the DEX aggregator and token-price aggregator
// HTTP APIs described in spec §6: pair lookup/search by mint or name, and
// batched USD price lookups. Grounded on the teacher's pkg/scanner price-
// lookup helpers, generalized to the DexScreener-shaped response.
package market

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lineage-agent/forensics/internal/httpshell"
)

// Pair is the subset of a DexScreener-shaped pair object the pipeline uses.
type Pair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	Info struct {
		ImageURL string `json:"imageUrl"`
	} `json:"info"`
	PriceUSD string `json:"priceUsd"`
	MarketCap float64 `json:"marketCap"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Txns struct {
		H1  TxnCount `json:"h1"`
		H6  TxnCount `json:"h6"`
		H24 TxnCount `json:"h24"`
	} `json:"txns"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	PairCreatedAt int64  `json:"pairCreatedAt"` // milliseconds
	URL           string `json:"url"`
}

// TxnCount is a buy/sell count bucket.
type TxnCount struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// PriceUSDFloat parses PriceUSD, returning 0 on malformed input rather
// than erroring — market data is inherently best-effort.
func (p Pair) PriceUSDFloat() float64 {
	f, err := strconv.ParseFloat(p.PriceUSD, 64)
	if err != nil {
		return 0
	}
	return f
}

// CreatedAt converts PairCreatedAt (milliseconds) into a time.Time.
func (p Pair) CreatedAt() time.Time {
	if p.PairCreatedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.PairCreatedAt).UTC()
}

const solanaChainID = "solana"

// Client queries the DEX aggregator and token-price aggregator.
type Client struct {
	dex    *httpshell.Client
	price  *httpshell.Client
	dexURL string
	priceURL string
}

// New builds a market Client.
func New(dex, price *httpshell.Client, dexBaseURL, priceBaseURL string) *Client {
	return &Client{dex: dex, price: price, dexURL: dexBaseURL, priceURL: priceBaseURL}
}

type pairsResponse struct {
	Pairs []Pair `json:"pairs"`
}

// PairsForMint returns every known pair for a mint, best-effort.
func (c *Client) PairsForMint(ctx context.Context, mint string) ([]Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", c.dexURL, url.PathEscape(mint))
	var resp pairsResponse
	if err := c.dex.GetJSON(ctx, u, &resp, true); err != nil {
		return nil, fmt.Errorf("market: pairs for mint: %w", err)
	}
	return resp.Pairs, nil
}

// SearchPairs searches the aggregator by free-text query (name or symbol).
func (c *Client) SearchPairs(ctx context.Context, query string) ([]Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/search?q=%s", c.dexURL, url.QueryEscape(query))
	var resp pairsResponse
	if err := c.dex.GetJSON(ctx, u, &resp, true); err != nil {
		return nil, fmt.Errorf("market: search pairs: %w", err)
	}
	return resp.Pairs, nil
}

// BestLiquidityPair returns the Solana-chain pair with the highest USD
// liquidity from a pair list, or nil if none qualify.
func BestLiquidityPair(pairs []Pair) *Pair {
	var best *Pair
	for i := range pairs {
		p := &pairs[i]
		if p.ChainID != solanaChainID {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}

// SolanaPairs filters a pair list to the Solana chain.
func SolanaPairs(pairs []Pair) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.ChainID == solanaChainID {
			out = append(out, p)
		}
	}
	return out
}

// PricesUSD fetches USD prices for a batch of mints from the token-price
// aggregator in one request.
func (c *Client) PricesUSD(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}
	ids := strings.Join(mints, ",")
	u := fmt.Sprintf("%s/v4/price?ids=%s", c.priceURL, url.QueryEscape(ids))

	var resp struct {
		Data map[string]struct {
			Price string `json:"price"`
		} `json:"data"`
	}
	if err := c.price.GetJSON(ctx, u, &resp, true); err != nil {
		return nil, fmt.Errorf("market: prices usd: %w", err)
	}

	out := make(map[string]float64, len(resp.Data))
	for mint, entry := range resp.Data {
		if f, err := strconv.ParseFloat(entry.Price, 64); err == nil {
			out[mint] = f
		}
	}
	return out, nil
}

// SolPriceUSD is a convenience wrapper for a single-mint price lookup,
// used by the SOL-flow tracer to convert extracted SOL into USD.
func (c *Client) SolPriceUSD(ctx context.Context, wsolMint string) (float64, error) {
	prices, err := c.PricesUSD(ctx, []string{wsolMint})
	if err != nil {
		return 0, err
	}
	return prices[wsolMint], nil
}
