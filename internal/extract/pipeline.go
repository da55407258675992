// Package extract runs the full color extraction pipeline for one file and
// for batches of files.
//
// The per-file flow is classify -> rasterize -> normalize -> cluster ->
// assemble, strictly downstream; nothing here knows about transports or
// request handling. Batches run on a fixed-size worker pool with results
// collected in request order regardless of completion order.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"runtime"

	"github.com/ironsheep/color-extract/internal/classify"
	"github.com/ironsheep/color-extract/internal/cluster"
	"github.com/ironsheep/color-extract/internal/normalize"
	"github.com/ironsheep/color-extract/internal/raster"
)

// MaxBatchSize is the largest batch the enclosing transport may submit.
const MaxBatchSize = 100

// Options configures a Pipeline. Zero fields fall back to defaults.
type Options struct {
	// Cluster tunes the clustering engine.
	Cluster cluster.Options

	// Chain tunes the rasterizer chain (vector render size, external
	// converter timeout).
	Chain raster.ChainOptions

	// MaxWorkingDim bounds the longest edge of the working raster fed
	// to the clustering engine.
	MaxWorkingDim int

	// PreviewMaxDim bounds the longest edge of the preview encoding.
	PreviewMaxDim int

	// NameTolerance is the per-channel distance from pure white/black
	// within which a cluster is reported as "white"/"black" instead of
	// a hex code.
	NameTolerance int

	// DenoiseRadius enables Gaussian denoising before clustering when
	// positive. Off by default; intended for scans and photographs.
	DenoiseRadius float64

	// Workers sizes the batch worker pool. Zero means NumCPU.
	Workers int

	// OnFileDone, when set, is invoked once per finished file. It may
	// be called concurrently from worker goroutines.
	OnFileDone func()
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Cluster:       cluster.DefaultOptions(),
		Chain:         raster.DefaultChainOptions(),
		MaxWorkingDim: normalize.MaxWorkingDim,
		PreviewMaxDim: 256,
		NameTolerance: 10,
	}
}

func (o Options) normalized() Options {
	if o.MaxWorkingDim <= 0 {
		o.MaxWorkingDim = normalize.MaxWorkingDim
	}
	if o.PreviewMaxDim <= 0 {
		o.PreviewMaxDim = 256
	}
	if o.NameTolerance < 0 {
		o.NameTolerance = 0
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Result is the immutable outcome for one successfully processed file.
type Result struct {
	// Filename echoes the declared name of the input.
	Filename string `json:"filename"`

	// Count is the number of distinct reported colors.
	Count int `json:"count"`

	// Colors holds hex strings ("#RRGGBB", uppercase) or the reserved
	// names "white"/"black", dominant-first.
	Colors []string `json:"colors"`

	// Preview is a bounded data-URI PNG encoding of the normalized
	// raster.
	Preview string `json:"preview"`
}

// Pipeline processes files end to end. Pipelines are stateless between
// invocations and safe for concurrent use.
type Pipeline struct {
	opts  Options
	chain *raster.Chain
}

// New creates a Pipeline with the given options.
func New(opts Options) *Pipeline {
	opts = opts.normalized()
	return &Pipeline{
		opts:  opts,
		chain: raster.NewChain(opts.Chain),
	}
}

// ProcessFile runs the full pipeline on one (filename, bytes) pair. On
// failure the returned error is a *FileError carrying the taxonomy kind.
func (p *Pipeline) ProcessFile(ctx context.Context, filename string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fileError(filename, err)
	}

	class, err := classify.Detect(data, filename)
	if err != nil {
		return nil, fileError(filename, err)
	}

	src := raster.SourceFile{Name: filename, Data: data, Class: class}
	decoded, err := p.chain.Rasterize(ctx, src)
	if err != nil {
		return nil, fileError(filename, err)
	}

	// Normalization never touches the decoded buffer; each step hands
	// back a fresh working copy.
	work := normalize.Downscale(normalize.Composite(decoded), p.opts.MaxWorkingDim)
	if p.opts.DenoiseRadius > 0 {
		work = normalize.Denoise(work, p.opts.DenoiseRadius)
	}
	norm := normalize.GrayWorld(normalize.ToNRGBA(work))

	clusters, err := cluster.Palette(norm, p.opts.Cluster)
	if err != nil {
		return nil, fileError(filename, err)
	}

	colors := p.assembleColors(clusters)
	preview, err := encodePreview(norm, p.opts.PreviewMaxDim)
	if err != nil {
		return nil, fileError(filename, fmt.Errorf("encode preview: %w", err))
	}

	return &Result{
		Filename: filename,
		Count:    len(colors),
		Colors:   colors,
		Preview:  preview,
	}, nil
}

// assembleColors maps ordered clusters to hex strings or reserved names and
// collapses consecutive duplicates (two near-white clusters both naming
// "white" report once).
func (p *Pipeline) assembleColors(clusters []cluster.Cluster) []string {
	colors := make([]string, 0, len(clusters))
	for _, c := range clusters {
		s := p.nameOrHex(c)
		if n := len(colors); n > 0 && colors[n-1] == s {
			continue
		}
		colors = append(colors, s)
	}
	return colors
}

// nameOrHex maps near-white and near-black centroids to their reserved
// names; everything else formats as uppercase hex.
func (p *Pipeline) nameOrHex(c cluster.Cluster) string {
	tol := p.opts.NameTolerance
	if int(c.R) >= 255-tol && int(c.G) >= 255-tol && int(c.B) >= 255-tol {
		return "white"
	}
	if int(c.R) <= tol && int(c.G) <= tol && int(c.B) <= tol {
		return "black"
	}
	return c.Hex()
}

// encodePreview downscales the normalized raster to the preview bound and
// encodes it as a PNG data URI.
func encodePreview(img *image.NRGBA, maxDim int) (string, error) {
	small := normalize.Downscale(img, maxDim)

	var buf bytes.Buffer
	if err := png.Encode(&buf, small); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
