package lineage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/imagehash"
	"github.com/lineage-agent/forensics/internal/models"
	"github.com/lineage-agent/forensics/internal/similarity"
)

// scorePair scores candidate against root across all five dimensions and
// returns both the per-dimension evidence and its weighted composite.
func scorePair(w similarity.Weights, root, candidate node) (models.SimilarityEvidence, float64) {
	nameScore := similarity.NameScore(root.meta.Name, candidate.meta.Name)
	symbolScore := similarity.SymbolScore(root.meta.Symbol, candidate.meta.Symbol)

	imageScore := 0.0
	if root.hasPhash && candidate.hasPhash {
		imageScore = similarity.ImageScore(root.phash, candidate.phash)
	}

	sameFingerprint := root.hasFingerprint && candidate.hasFingerprint && root.fingerprint == candidate.fingerprint
	deployerScore := similarity.DeployerScore(root.meta.Deployer, candidate.meta.Deployer, sameFingerprint)

	temporalScore := 0.0
	if !root.meta.CreatedAt.IsZero() && !candidate.meta.CreatedAt.IsZero() {
		delta := candidate.meta.CreatedAt.Sub(root.meta.CreatedAt).Seconds()
		temporalScore = similarity.TemporalScore(delta)
	}

	composite := similarity.Composite(w, nameScore, symbolScore, imageScore, deployerScore, temporalScore)
	evidence := models.SimilarityEvidence{
		NameScore:      nameScore,
		SymbolScore:    symbolScore,
		ImageScore:     imageScore,
		DeployerScore:  deployerScore,
		TemporalScore:  temporalScore,
		CompositeScore: composite,
	}
	return evidence, composite
}

// fetchPHash fetches a token's off-chain image and reduces it to a 64-bit
// perceptual hash.
func fetchPHash(ctx context.Context, client *httpshell.Client, imageURI string) (uint64, error) {
	if client == nil || imageURI == "" {
		return 0, fmt.Errorf("lineage: no image available")
	}
	return imagehash.Fetch(ctx, client, imageURI)
}

var fingerprintAlnumRe = regexp.MustCompile(`[^a-z0-9]`)

// fetchFingerprint derives the same operator-metadata fingerprint
// internal/forensic's cross-deployer grouping uses, here applied
// pairwise: two tokens whose off-chain metadata normalizes to the same
// fingerprint were very likely minted with the same template.
func fetchFingerprint(ctx context.Context, client *httpshell.Client, metadataURI string) (string, error) {
	if client == nil || metadataURI == "" {
		return "", fmt.Errorf("lineage: no metadata uri available")
	}
	var meta struct {
		Description string `json:"description"`
	}
	if err := client.GetJSON(ctx, metadataURI, &meta, false); err != nil {
		return "", fmt.Errorf("lineage: fetch metadata: %w", err)
	}
	description := normalizeDescription(meta.Description)
	if description == "" {
		return "", fmt.Errorf("lineage: empty description")
	}
	service := classifyUploadService(metadataURI)
	return deriveFingerprint(service, description), nil
}

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

func normalizeDescription(description string) string {
	lower := strings.ToLower(description)
	clean := fingerprintAlnumRe.ReplaceAllString(lower, "")
	if len(clean) > 60 {
		clean = clean[:60]
	}
	return clean
}

func deriveFingerprint(service, description string) string {
	sum := sha256.Sum256([]byte(service + ":" + description))
	return hex.EncodeToString(sum[:])[:16]
}
