package cluster

import (
	"image"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// sample is one pixel feeding the engine, tagged with its row-major index
// in the source raster so tie-breaking stays tied to scan order.
type sample struct {
	r, g, b uint8
	index   int
}

// centroid carries float channel values between iterations. Means are
// accumulated in float64 and only rounded to uint8 once the final palette
// is emitted, so repeated iterations do not drift from quantization.
type centroid struct {
	r, g, b   float64
	count     int
	firstSeen int
}

// Palette clusters the image's pixels into representative colors. The
// result is ordered dominant-first (descending membership, ties by first
// scanned member pixel) and is never empty for a non-empty raster.
func Palette(img image.Image, opts Options) ([]Cluster, error) {
	opts = opts.normalized()

	samples := collect(img, opts.SampleBudget)
	if len(samples) == 0 {
		return nil, ErrEmptyImage
	}

	centroids := seed(samples, estimateK(samples, opts))
	assign := make([]int, len(samples))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		changed := assignAll(samples, centroids, assign)
		centroids = recompute(samples, assign, len(centroids))
		var merged bool
		centroids, merged = mergeClose(centroids, opts.MergeThreshold)
		if merged {
			// Merging invalidated the assignment indices; rebuild
			// them against the reduced centroid set.
			assignAll(samples, centroids, assign)
			centroids = recompute(samples, assign, len(centroids))
			changed = true
		}
		if !changed {
			break
		}
	}

	centroids = absorbNoise(samples, centroids, assign, opts.MinClusterFrac)

	// Noise reabsorption moves the surviving means, which can push two
	// centroids back inside the merge radius. A final merge pass keeps
	// the dedup invariant: no two reported colors are perceptually
	// indistinguishable.
	if reduced, merged := mergeClose(centroids, opts.MergeThreshold); merged {
		assignAll(samples, reduced, assign)
		centroids = recompute(samples, assign, len(reduced))
	}

	out := make([]Cluster, 0, len(centroids))
	for _, c := range centroids {
		r := roundChannel(c.r)
		g := roundChannel(c.g)
		b := roundChannel(c.b)
		out = append(out, Cluster{
			ID:        clusterID(r, g, b),
			R:         r,
			G:         g,
			B:         b,
			Count:     c.count,
			firstSeen: c.firstSeen,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].firstSeen < out[j].firstSeen
	})
	return out, nil
}

// collect gathers pixels row-major from the top-left origin. Above the
// budget a fixed stride is applied; the stride walk is deterministic so the
// same image always produces the same working set.
func collect(img image.Image, budget int) []sample {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	total := w * h
	if total <= 0 {
		return nil
	}

	stride := 1
	if total > budget {
		stride = (total + budget - 1) / budget
	}

	samples := make([]sample, 0, total/stride+1)
	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if idx%stride == 0 {
				r, g, b, _ := img.At(x, y).RGBA()
				samples = append(samples, sample{
					r:     uint8(r >> 8),
					g:     uint8(g >> 8),
					b:     uint8(b >> 8),
					index: idx,
				})
			}
			idx++
		}
	}
	return samples
}

// estimateK counts peaks in a 32-bin luminance histogram (ITU-R BT.601
// weights) as a proxy for how many tonal groups the image holds, clamped to
// [MinK, MaxK] and to the number of distinct quantized colors so a flat
// image cannot be over-seeded.
func estimateK(samples []sample, opts Options) int {
	const bins = 32
	var hist [bins]int
	for _, s := range samples {
		lum := (299*int(s.r) + 587*int(s.g) + 114*int(s.b)) / 1000
		hist[lum*bins/256]++
	}

	floor := len(samples) / 100
	if floor < 1 {
		floor = 1
	}

	peaks := 0
	for i := 0; i < bins; i++ {
		if hist[i] < floor {
			continue
		}
		left := 0
		if i > 0 {
			left = hist[i-1]
		}
		right := 0
		if i < bins-1 {
			right = hist[i+1]
		}
		if hist[i] >= left && hist[i] >= right {
			peaks++
		}
	}

	k := peaks
	if k < opts.MinK {
		k = opts.MinK
	}
	if k > opts.MaxK {
		k = opts.MaxK
	}
	if d := distinctQuantized(samples); k > d {
		k = d
	}
	return k
}

// quantKey folds a color to 4 bits per channel, grouping near neighbors
// into one histogram bin for seeding.
func quantKey(s sample) uint16 {
	return uint16(s.r>>4)<<8 | uint16(s.g>>4)<<4 | uint16(s.b>>4)
}

func distinctQuantized(samples []sample) int {
	seen := make(map[uint16]struct{})
	for _, s := range samples {
		seen[quantKey(s)] = struct{}{}
	}
	return len(seen)
}

// seed picks the K most populous quantized color bins as initial centroids,
// ordered by population then first-encountered pixel so seeding never
// depends on map iteration order.
func seed(samples []sample, k int) []centroid {
	type bin struct {
		sumR, sumG, sumB float64
		count            int
		first            int
	}
	bins := make(map[uint16]*bin)
	for _, s := range samples {
		key := quantKey(s)
		b, ok := bins[key]
		if !ok {
			b = &bin{first: s.index}
			bins[key] = b
		}
		b.sumR += float64(s.r)
		b.sumG += float64(s.g)
		b.sumB += float64(s.b)
		b.count++
	}

	ordered := make([]*bin, 0, len(bins))
	for _, b := range bins {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].first < ordered[j].first
	})

	if k > len(ordered) {
		k = len(ordered)
	}
	centroids := make([]centroid, k)
	for i := 0; i < k; i++ {
		b := ordered[i]
		centroids[i] = centroid{
			r: b.sumR / float64(b.count),
			g: b.sumG / float64(b.count),
			b: b.sumB / float64(b.count),
		}
	}
	return centroids
}

// assignAll maps every sample to its nearest centroid by Euclidean distance
// in RGB. Ties go to the lower centroid index. Reports whether any
// assignment changed.
func assignAll(samples []sample, centroids []centroid, assign []int) bool {
	changed := false
	for i, s := range samples {
		best := 0
		bestDist := math.MaxFloat64
		for j, c := range centroids {
			dr := float64(s.r) - c.r
			dg := float64(s.g) - c.g
			db := float64(s.b) - c.b
			d := dr*dr + dg*dg + db*db
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		if assign[i] != best {
			assign[i] = best
			changed = true
		}
	}
	return changed
}

// recompute rebuilds centroids as the float mean of their members and drops
// centroids that lost every member.
func recompute(samples []sample, assign []int, k int) []centroid {
	sums := make([]centroid, k)
	for i := range sums {
		sums[i].firstSeen = math.MaxInt
	}
	for i, s := range samples {
		c := &sums[assign[i]]
		c.r += float64(s.r)
		c.g += float64(s.g)
		c.b += float64(s.b)
		c.count++
		if s.index < c.firstSeen {
			c.firstSeen = s.index
		}
	}

	out := make([]centroid, 0, k)
	remap := make([]int, k)
	for i := range sums {
		if sums[i].count == 0 {
			remap[i] = -1
			continue
		}
		n := float64(sums[i].count)
		remap[i] = len(out)
		out = append(out, centroid{
			r:         sums[i].r / n,
			g:         sums[i].g / n,
			b:         sums[i].b / n,
			count:     sums[i].count,
			firstSeen: sums[i].firstSeen,
		})
	}
	for i := range assign {
		assign[i] = remap[assign[i]]
	}
	return out
}

// mergeClose collapses centroid pairs whose perceptual Lab distance falls
// below the threshold, weighting the merged position by membership. Repeats
// until no pair qualifies. Returns the reduced set and whether anything
// merged.
func mergeClose(centroids []centroid, threshold float64) ([]centroid, bool) {
	merged := false
	for {
		found := false
		for i := 0; i < len(centroids) && !found; i++ {
			for j := i + 1; j < len(centroids); j++ {
				if labDistance(centroids[i], centroids[j]) >= threshold {
					continue
				}
				centroids[i] = weightedMerge(centroids[i], centroids[j])
				centroids = append(centroids[:j], centroids[j+1:]...)
				found = true
				merged = true
				break
			}
		}
		if !found {
			return centroids, merged
		}
	}
}

func weightedMerge(a, b centroid) centroid {
	na, nb := float64(a.count), float64(b.count)
	n := na + nb
	first := a.firstSeen
	if b.firstSeen < first {
		first = b.firstSeen
	}
	return centroid{
		r:         (a.r*na + b.r*nb) / n,
		g:         (a.g*na + b.g*nb) / n,
		b:         (a.b*na + b.b*nb) / n,
		count:     a.count + b.count,
		firstSeen: first,
	}
}

// absorbNoise dissolves clusters below the minimum membership fraction and
// hands their pixels to the nearest surviving centroid, so every sampled
// pixel belongs to exactly one final cluster. If nothing survives the
// cutoff, the most populous cluster is kept.
func absorbNoise(samples []sample, centroids []centroid, assign []int, minFrac float64) []centroid {
	if len(centroids) <= 1 {
		return centroids
	}

	cutoff := int(minFrac * float64(len(samples)))
	survivors := make([]centroid, 0, len(centroids))
	for _, c := range centroids {
		if c.count > cutoff {
			survivors = append(survivors, c)
		}
	}
	if len(survivors) == 0 {
		largest := centroids[0]
		for _, c := range centroids[1:] {
			if c.count > largest.count {
				largest = c
			}
		}
		survivors = []centroid{largest}
	}
	if len(survivors) == len(centroids) {
		return centroids
	}

	assignAll(samples, survivors, assign)
	return recompute(samples, assign, len(survivors))
}

func labDistance(a, b centroid) float64 {
	ca := colorful.Color{R: a.r / 255, G: a.g / 255, B: a.b / 255}
	cb := colorful.Color{R: b.r / 255, G: b.g / 255, B: b.b / 255}
	return ca.DistanceLab(cb)
}

func roundChannel(v float64) uint8 {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}
