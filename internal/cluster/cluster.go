// Package cluster reduces a raster's pixels to a small ordered set of
// representative colors.
//
// The engine runs iterative centroid clustering (k-means style) in RGB
// space. K is not user-specified: an initial estimate is taken from the
// luminance histogram peak count, then refined by merging centroids that
// fall within a perceptual distance threshold of each other. The perceptual
// metric is Euclidean distance in CIE Lab via go-colorful, which tracks
// visual similarity far better than raw RGB distance.
//
// Output ordering is fully deterministic: clusters sort by descending pixel
// membership, ties broken by the index of the first member pixel in
// row-major scan order. Identical input bytes always produce identical
// output.
package cluster

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrEmptyImage is returned for a raster with zero decodable pixels (a 0x0
// canvas). A non-empty raster never yields an empty palette.
var ErrEmptyImage = errors.New("image has no pixels")

// Cluster is one representative color with its pixel membership.
type Cluster struct {
	// ID is a short stable identifier derived from the rounded centroid
	// bytes; identical colors always get identical IDs across runs.
	ID string

	// R, G, B is the cluster centroid rounded to 8-bit channels.
	R, G, B uint8

	// Count is the number of member pixels in the sampled working set.
	Count int

	// firstSeen is the row-major index of the earliest member pixel,
	// used as the deterministic tie-breaker when counts are equal.
	firstSeen int
}

// Hex returns the centroid as an uppercase "#RRGGBB" string.
func (c Cluster) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Options tunes the clustering engine. The zero value is unusable; start
// from DefaultOptions.
type Options struct {
	// MinK and MaxK clamp the adaptive initial cluster count estimated
	// from the luminance histogram.
	MinK int
	MaxK int

	// MaxIterations caps the assign/recompute loop when assignments
	// never fully stabilize.
	MaxIterations int

	// MergeThreshold is the perceptual deduplication distance in CIE Lab
	// space (go-colorful DistanceLab, where black-to-white is 1.0).
	// Centroid pairs closer than this merge into one cluster. The
	// default 0.10 corresponds to roughly a CIE76 delta-E of 10, in line
	// with near-duplicate merging rather than just-noticeable difference.
	MergeThreshold float64

	// MinClusterFrac dissolves clusters holding less than this fraction
	// of sampled pixels; their members are reassigned to the nearest
	// surviving centroid so every pixel stays accounted for.
	MinClusterFrac float64

	// SampleBudget bounds how many pixels feed the engine. Larger images
	// are subsampled on a fixed stride, never randomly, so results stay
	// reproducible.
	SampleBudget int
}

// DefaultOptions returns the tuning used by the extraction pipeline.
func DefaultOptions() Options {
	return Options{
		MinK:           2,
		MaxK:           8,
		MaxIterations:  50,
		MergeThreshold: 0.10,
		MinClusterFrac: 0.005,
		SampleBudget:   200_000,
	}
}

// normalized clamps out-of-range options back to safe values.
func (o Options) normalized() Options {
	if o.MinK < 1 {
		o.MinK = 1
	}
	if o.MaxK < o.MinK {
		o.MaxK = o.MinK
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultOptions().MaxIterations
	}
	if o.MergeThreshold <= 0 {
		o.MergeThreshold = DefaultOptions().MergeThreshold
	}
	if o.MinClusterFrac < 0 || o.MinClusterFrac >= 1 {
		o.MinClusterFrac = DefaultOptions().MinClusterFrac
	}
	if o.SampleBudget <= 0 {
		o.SampleBudget = DefaultOptions().SampleBudget
	}
	return o
}

// clusterID hashes the rounded centroid into a short stable identifier.
func clusterID(r, g, b uint8) string {
	sum := xxhash.Sum64([]byte{r, g, b})
	return fmt.Sprintf("%016x", sum)[:8]
}
