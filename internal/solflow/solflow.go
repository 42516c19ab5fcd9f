// Package solflow implements the bounded breadth-first SOL-flow tracer: it
// walks balance deltas outward from a deployer wallet hop by hop, persisting
// the capital graph and classifying where it terminates (a CEX hot-wallet, a
// bridge, or an unlabeled wallet).
package solflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/market"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/rpcclient"
	"github.com/lineage-agent/forensics/internal/store"
)

const (
	// MaxHops bounds how many edges deep the BFS walks outward.
	MaxHops = 3
	// MaxTxnPerWallet bounds how many recent signatures are scanned per wallet per hop.
	MaxTxnPerWallet = 50
	// MinTransferLamports is the smallest transfer worth recording as an edge (~0.1 SOL).
	MinTransferLamports = 100_000_000
	// hopConcurrency is the per-hop wallet fan-out bound.
	hopConcurrency = 3
	// DefaultTimeout is the hard per-trace budget.
	DefaultTimeout = 20 * time.Second

	// wsolMint is the wrapped-SOL mint used to look up the SOL/USD price.
	wsolMint = "So11111111111111111111111111111111111111112"
)

// Tracer runs the SOL-flow BFS for a deployer wallet.
type Tracer struct {
	rpc        *rpcclient.Client
	store      *store.Store
	market     *market.Client
	bridge     *httpshell.Client
	bridgeBase string
}

// New builds a Tracer. bridgeBaseURL points at a Wormholescan-shaped
// attestation API and may be empty to skip cross-chain exit resolution.
func New(rpc *rpcclient.Client, st *store.Store, mkt *market.Client, bridgeClient *httpshell.Client, bridgeBaseURL string) *Tracer {
	return &Tracer{rpc: rpc, store: st, market: mkt, bridge: bridgeClient, bridgeBase: bridgeBaseURL}
}

type edgeSet struct {
	mu    sync.Mutex
	edges []models.SolFlowEdge
}

func (s *edgeSet) add(e models.SolFlowEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, e)
}

// Trace runs the full BFS from deployer for mint and returns the persisted
// report, caching it alongside any already-traced flows for the mint.
func (t *Tracer) Trace(ctx context.Context, mint, deployer string) (*models.SolFlowReport, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	visited := map[string]bool{deployer: true}
	frontier := []string{deployer}
	set := &edgeSet{}

	var rugTimestamp *time.Time

	for hop := 0; hop < MaxHops && len(frontier) > 0; hop++ {
		next := t.runHop(ctx, mint, frontier, hop, visited, set)

		hopEdges := hopSlice(set, hop)
		if err := t.store.InsertSolFlowBatch(hopEdges); err != nil {
			return nil, fmt.Errorf("solflow: persisting hop %d: %w", hop, err)
		}

		if hop == 0 {
			for _, e := range hopEdges {
				if e.BlockTime != nil && (rugTimestamp == nil || e.BlockTime.Before(*rugTimestamp)) {
					rugTimestamp = e.BlockTime
				}
			}
		}

		var newFrontier []string
		for _, w := range next {
			if visited[w] || labels.IsSkipped(w) {
				continue
			}
			visited[w] = true
			newFrontier = append(newFrontier, w)
		}
		frontier = newFrontier
	}

	report := t.buildReport(ctx, mint, deployer, set.edges, rugTimestamp)
	if err := t.store.SolFlowReportPut(*report); err != nil {
		return report, fmt.Errorf("solflow: caching report: %w", err)
	}
	return report, nil
}

// runHop fetches recent signatures for every wallet in frontier (bounded
// concurrency 3), parses flows from each transaction, and returns the set of
// newly-discovered recipients.
func (t *Tracer) runHop(ctx context.Context, mint string, frontier []string, hop int, visited map[string]bool, set *edgeSet) []string {
	sem := semaphore.NewWeighted(hopConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var discovered []string

	for _, wallet := range frontier {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			if sem.Acquire(ctx, 1) != nil {
				return
			}
			defer sem.Release(1)

			recipients := t.traceWallet(ctx, mint, source, hop, set)
			if len(recipients) > 0 {
				mu.Lock()
				discovered = append(discovered, recipients...)
				mu.Unlock()
			}
		}(wallet)
	}
	wg.Wait()
	return discovered
}

// traceWallet fetches source's recent signatures, parses every transaction
// for outgoing flows ≥ MinTransferLamports, emits edges, and returns the
// recipients found.
func (t *Tracer) traceWallet(ctx context.Context, mint, source string, hop int, set *edgeSet) []string {
	sigs, err := t.rpc.GetSignaturesForAddress(ctx, source, "", MaxTxnPerWallet)
	if err != nil {
		return nil
	}

	var recipients []string
	for _, sig := range sigs {
		tx, err := t.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			continue
		}
		srcIdx := indexOf(tx, source)
		if srcIdx < 0 {
			continue
		}
		if tx.BalanceDelta(srcIdx) >= 0 {
			continue
		}

		var blockTime *time.Time
		if tx.BlockTime != nil {
			bt := time.Unix(*tx.BlockTime, 0).UTC()
			blockTime = &bt
		}

		for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
			if i == srcIdx {
				continue
			}
			delta := tx.BalanceDelta(i)
			if delta < MinTransferLamports {
				continue
			}
			dest := tx.AccountAt(i)
			if dest == "" || labels.IsSkipped(dest) {
				continue
			}

			fromInfo := labels.ClassifyAddress(source)
			toInfo := labels.ClassifyAddress(dest)
			set.add(models.SolFlowEdge{
				Mint:           mint,
				FromAddress:    source,
				ToAddress:      dest,
				AmountLamports: delta,
				AmountSOL:      float64(delta) / 1e9,
				Signature:      sig.Signature,
				Slot:           sig.Slot,
				BlockTime:      blockTime,
				Hop:            hop,
				FromLabel:      fromInfo.Label,
				ToLabel:        toInfo.Label,
				EntityType:     string(toInfo.EntityType),
			})
			recipients = append(recipients, dest)
		}
	}
	return recipients
}

func indexOf(tx *rpcclient.Transaction, addr string) int {
	for i := 0; i < len(tx.Transaction.Message.AccountKeys); i++ {
		if tx.AccountAt(i) == addr {
			return i
		}
	}
	return -1
}

func hopSlice(set *edgeSet, hop int) []models.SolFlowEdge {
	set.mu.Lock()
	defer set.mu.Unlock()
	var out []models.SolFlowEdge
	for _, e := range set.edges {
		if e.Hop == hop {
			out = append(out, e)
		}
	}
	return out
}
