// Package imagehash fetches a token's off-chain image and reduces it to a
// 64-bit perceptual hash, the unit internal/similarity.ImageScore compares.
package imagehash

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"

	"github.com/lineage-agent/forensics/internal/httpshell"
)

// Fetch downloads imageURI through client and returns its perceptual hash.
// Best-effort: callers treat a non-nil error as "no image signal available"
// rather than a hard failure of the enclosing analysis.
func Fetch(ctx context.Context, client *httpshell.Client, imageURI string) (uint64, error) {
	if imageURI == "" {
		return 0, fmt.Errorf("imagehash: empty image uri")
	}
	body, err := client.GetBytes(ctx, imageURI, false)
	if err != nil {
		return 0, fmt.Errorf("imagehash: fetch: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("imagehash: decode: %w", err)
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("imagehash: phash: %w", err)
	}
	return hash.GetHash(), nil
}
