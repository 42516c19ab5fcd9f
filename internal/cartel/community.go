package cartel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/lineage-agent/forensics/internal/forensic"
	"github.com/lineage-agent/forensics/internal/models"
)

// louvainResolution is the standard modularity resolution parameter; 1.0
// optimizes plain modularity rather than a resolution-biased variant.
const louvainResolution = 1.0

// Community runs on-demand community detection over deployer's ego-network
// of cartel edges: build the weighted subgraph of deployer and its direct
// signal neighbors, partition it with Louvain (falling back to connected
// components if Louvain can't be run), and aggregate stats for whichever
// partition contains deployer.
func (b *Builder) Community(ctx context.Context, mint, deployer string) (*models.CartelReport, error) {
	edges, err := b.store.CartelEdgesForWallets([]string{deployer})
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return &models.CartelReport{Mint: mint}, nil
	}

	ids, idOf, walletOf := indexWallets(edges, deployer)
	partition := detectCommunities(ids, edges, idOf)

	var members []string
	for _, id := range partition[idOf[deployer]] {
		members = append(members, walletOf[id])
	}
	if len(members) < 2 {
		return &models.CartelReport{Mint: mint}, nil
	}
	sort.Strings(members)

	subEdges := edgesAmong(edges, members)
	summary := b.communitySummary(members, subEdges)
	return &models.CartelReport{Mint: mint, DeployerCommunity: summary}, nil
}

// indexWallets assigns each wallet touched by edges (plus deployer) a dense
// int64 id for gonum's graph types, in deterministic sorted order so
// repeated runs over the same edge set produce the same ids.
func indexWallets(edges []models.CartelEdge, deployer string) ([]int64, map[string]int64, map[int64]string) {
	seen := map[string]bool{deployer: true}
	for _, e := range edges {
		seen[e.WalletA] = true
		seen[e.WalletB] = true
	}
	wallets := make([]string, 0, len(seen))
	for w := range seen {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)

	ids := make([]int64, len(wallets))
	idOf := make(map[string]int64, len(wallets))
	walletOf := make(map[int64]string, len(wallets))
	for i, w := range wallets {
		ids[i] = int64(i)
		idOf[w] = int64(i)
		walletOf[int64(i)] = w
	}
	return ids, idOf, walletOf
}

// detectCommunities builds a weighted undirected graph (edge weight = the
// max signal strength observed for that wallet pair) and partitions it with
// Louvain modularity optimization, falling back to plain connected
// components if gonum's community package can't handle the graph shape.
func detectCommunities(ids []int64, edges []models.CartelEdge, idOf map[string]int64) map[int64][]int64 {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for _, id := range ids {
		g.AddNode(simple.Node(id))
	}
	weight := make(map[[2]int64]float64)
	for _, e := range edges {
		a, b := idOf[e.WalletA], idOf[e.WalletB]
		key := edgeKey(a, b)
		if e.SignalStrength > weight[key] {
			weight[key] = e.SignalStrength
		}
	}
	for key, w := range weight {
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(key[0]), T: simple.Node(key[1]), W: w})
	}

	if reduced := modularize(g); reduced != nil {
		out := make(map[int64][]int64)
		for _, comm := range reduced {
			members := make([]int64, 0, len(comm))
			for _, n := range comm {
				members = append(members, n.ID())
			}
			for _, n := range comm {
				out[n.ID()] = members
			}
		}
		return out
	}
	return connectedComponents(ids, edges, idOf)
}

// modularize attempts Louvain community detection via gonum, recovering
// from a panic (gonum's community package doesn't tolerate every
// degenerate graph shape, e.g. isolated nodes with certain weight
// configurations) and returning nil so the caller falls back to connected
// components — mirroring the fallback the spec calls for directly.
func modularize(g graph.Graph) (partition [][]graph.Node) {
	defer func() {
		if recover() != nil {
			partition = nil
		}
	}()
	reduced := community.Modularize(g, louvainResolution, nil)
	return reduced.Communities()
}

func edgeKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

// connectedComponents is the plain-graph fallback: a BFS over the same
// wallet/edge set ignoring weight, used when Louvain is unavailable.
func connectedComponents(ids []int64, edges []models.CartelEdge, idOf map[string]int64) map[int64][]int64 {
	adjacency := make(map[int64][]int64)
	for _, e := range edges {
		a, b := idOf[e.WalletA], idOf[e.WalletB]
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}

	visited := make(map[int64]bool)
	out := make(map[int64][]int64)
	for _, start := range ids {
		if visited[start] {
			continue
		}
		queue := []int64{start}
		visited[start] = true
		var component []int64
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			component = append(component, n)
			for _, next := range adjacency[n] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		for _, n := range component {
			out[n] = component
		}
	}
	return out
}

func edgesAmong(edges []models.CartelEdge, members []string) []models.CartelEdge {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	var out []models.CartelEdge
	for _, e := range edges {
		if set[e.WalletA] && set[e.WalletB] {
			out = append(out, e)
		}
	}
	return out
}

// communitySummary aggregates launch/rug/extraction stats across a
// community's wallets from the event store, and picks the strongest edge
// and tiered confidence per spec.
func (b *Builder) communitySummary(members []string, edges []models.CartelEdge) *models.CartelCommunity {
	var totalTokens, totalRugs int
	var estimatedUSD float64
	var earliest *time.Time
	signalTypes := make(map[models.CartelSignalType]bool)

	for _, wallet := range members {
		events, err := b.store.EventsByDeployer(wallet)
		if err != nil {
			continue
		}
		for _, ev := range events {
			switch ev.EventType {
			case models.EventTokenCreated:
				totalTokens++
				if !ev.CreatedAt.IsZero() && (earliest == nil || ev.CreatedAt.Before(*earliest)) {
					t := ev.CreatedAt
					earliest = &t
				}
			case models.EventTokenRugged:
				totalRugs++
				mcap := ev.McapUSD
				estimatedUSD += mcap * forensic.ExtractionRateTier(&mcap)
			}
		}
	}

	var strongest models.CartelEdge
	for _, e := range edges {
		signalTypes[e.SignalType] = true
		if e.SignalStrength > strongest.SignalStrength {
			strongest = e
		}
	}

	return &models.CartelCommunity{
		CommunityID:           communityID(members),
		Wallets:               members,
		TotalTokensLaunched:   totalTokens,
		TotalRugs:             totalRugs,
		EstimatedExtractedUSD: estimatedUSD,
		ActiveSince:           earliest,
		StrongestSignal:       strongest.SignalType,
		Edges:                 edges,
		Confidence:            communityConfidence(len(signalTypes), len(members)),
	}
}

// communityID is the SHA-256 prefix of the sorted wallet set so the same
// community always hashes to the same id regardless of discovery order.
func communityID(sortedMembers []string) string {
	h := sha256.New()
	for _, m := range sortedMembers {
		h.Write([]byte(m))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func communityConfidence(distinctSignalTypes, walletCount int) models.CartelConfidence {
	switch {
	case distinctSignalTypes >= 2 && walletCount >= 3:
		return models.ConfidenceHigh
	case distinctSignalTypes >= 2 || walletCount >= 2:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
