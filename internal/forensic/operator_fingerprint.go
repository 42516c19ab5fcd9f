package forensic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/models"
)

const (
	fingerprintFetchConcurrency = 3
	fingerprintFetchTimeout     = 5 * time.Second
	fingerprintDescriptionLen   = 60
)

var fingerprintAlnumRe = regexp.MustCompile(`[^a-z0-9]`)

// MetadataTriple is one (mint, deployer, off-chain metadata URI) observed
// for a token, the unit of work for operator-fingerprint extraction.
type MetadataTriple struct {
	Mint        string
	Deployer    string
	MetadataURI string
}

type offChainMetadata struct {
	Description string `json:"description"`
}

// classifyUploadService identifies which off-chain storage host served a
// metadata URI, folding any unrecognized host into "other".
func classifyUploadService(uri string) string {
	lower := strings.ToLower(uri)
	switch {
	case strings.Contains(lower, "arweave"):
		return "arweave"
	case strings.Contains(lower, "ipfs"):
		return "ipfs"
	case strings.Contains(lower, "cloudflare"):
		return "cloudflare"
	case strings.Contains(lower, "pinata"):
		return "pinata"
	case strings.Contains(lower, "pump.fun") || strings.Contains(lower, "pumpfun"):
		return "pumpfun"
	default:
		return "other"
	}
}

// normalizeDescription lowercases, strips everything but alphanumerics,
// and truncates to fingerprintDescriptionLen characters.
func normalizeDescription(description string) string {
	lower := strings.ToLower(description)
	clean := fingerprintAlnumRe.ReplaceAllString(lower, "")
	if len(clean) > fingerprintDescriptionLen {
		clean = clean[:fingerprintDescriptionLen]
	}
	return clean
}

func deriveFingerprint(service, description string) string {
	sum := sha256.Sum256([]byte(service + ":" + description))
	return hex.EncodeToString(sum[:])[:16]
}

// ComputeOperatorFingerprints fetches off-chain metadata for every triple
// (bounded concurrency, each fetch capped at 5 seconds) and groups
// deployers that share a derived fingerprint. Triples whose fetch fails or
// whose description is empty are skipped rather than aborting the batch.
// Only groups spanning at least two distinct deployers are returned.
func ComputeOperatorFingerprints(ctx context.Context, client *httpshell.Client, triples []MetadataTriple) []models.OperatorFingerprint {
	sem := semaphore.NewWeighted(fingerprintFetchConcurrency)
	var mu sync.Mutex
	type group struct {
		deployers map[string]bool
		mints     map[string]bool
	}
	groups := make(map[string]*group)

	var wg sync.WaitGroup
	for _, triple := range triples {
		if triple.MetadataURI == "" {
			continue
		}
		triple := triple
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			fetchCtx, cancel := context.WithTimeout(ctx, fingerprintFetchTimeout)
			defer cancel()

			var meta offChainMetadata
			if err := client.GetJSON(fetchCtx, triple.MetadataURI, &meta, false); err != nil {
				return
			}
			description := normalizeDescription(meta.Description)
			if description == "" {
				return
			}
			service := classifyUploadService(triple.MetadataURI)
			fp := deriveFingerprint(service, description)

			mu.Lock()
			g, ok := groups[fp]
			if !ok {
				g = &group{deployers: map[string]bool{}, mints: map[string]bool{}}
				groups[fp] = g
			}
			g.deployers[triple.Deployer] = true
			g.mints[triple.Mint] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	var out []models.OperatorFingerprint
	for fp, g := range groups {
		if len(g.deployers) < 2 {
			continue
		}
		out = append(out, models.OperatorFingerprint{
			Fingerprint: fp,
			Deployers:   mapKeys(g.deployers),
			Mints:       mapKeys(g.mints),
		})
	}
	return out
}

func mapKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
