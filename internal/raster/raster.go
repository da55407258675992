// Package raster turns any classified source file into a decoded pixel
// buffer.
//
// Conversion is organized as an ordered chain of strategies, each tagged
// with the format classes it can handle. Strategies are tried in
// registration order; every failure is contained and recorded, and the next
// strategy runs. Only when the chain is exhausted does the caller see
// ErrConversionFailed, carrying the joined per-strategy errors. Strategies
// that shell out to external converters run under their own timeout and
// clean up every intermediate artifact whether they succeed or not.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ironsheep/color-extract/internal/classify"
)

var (
	// ErrConversionFailed means every applicable strategy in the chain
	// failed for this file. File-scoped; never aborts a batch.
	ErrConversionFailed = errors.New("all conversion strategies failed")

	// ErrDecode means a raster decoder rejected malformed or truncated
	// bytes.
	ErrDecode = errors.New("decode error")
)

// SourceFile is one classified input, immutable once built.
type SourceFile struct {
	Name  string
	Data  []byte
	Class classify.Class
}

// Strategy is a single conversion tactic. Convert must be side-effect-free
// beyond producing an image: any temp files it creates are scoped to the
// one attempt and removed before it returns.
type Strategy interface {
	// Name identifies the strategy in error messages and logs.
	Name() string

	// CanConvert reports whether this strategy applies to the class.
	CanConvert(c classify.Class) bool

	// Convert produces a decoded image or fails. A failure is never
	// fatal to the chain.
	Convert(ctx context.Context, src SourceFile) (image.Image, error)
}

// Chain tries strategies in order until one produces an image.
type Chain struct {
	strategies []Strategy
}

// NewChain builds the default conversion chain:
//
//	decode       raster formats via registered stdlib/x-image decoders
//	svg-render   SVG scene graph rendered with tdewolff/canvas
//	svg-palette  declared-color harvest fallback for unrenderable SVGs
//	ghostscript  EPS/AI/PS/PDF via gs
//	pdftoppm     PDF-based AI files via poppler
//	imagemagick  generic document rasterization
//
// External converters are probed lazily; a missing binary just means that
// link of the chain reports unavailability and the next one runs.
func NewChain(opts ChainOptions) *Chain {
	opts = opts.normalized()
	return &Chain{
		strategies: []Strategy{
			decodeStrategy{},
			svgRenderStrategy{maxEdge: opts.VectorMaxEdge},
			svgPaletteStrategy{},
			newGhostscript(opts),
			newPdftoppm(opts),
			newImageMagick(opts),
		},
	}
}

// ChainOptions tunes the rasterizer chain.
type ChainOptions struct {
	// VectorMaxEdge caps the longest edge, in pixels, of rendered vector
	// output.
	VectorMaxEdge int

	// ConvertTimeout bounds each external conversion attempt. A timed
	// out attempt counts as a strategy failure, not a batch abort.
	ConvertTimeout time.Duration
}

// DefaultChainOptions returns the production defaults.
func DefaultChainOptions() ChainOptions {
	return ChainOptions{
		VectorMaxEdge:  1024,
		ConvertTimeout: 20 * time.Second,
	}
}

func (o ChainOptions) normalized() ChainOptions {
	if o.VectorMaxEdge <= 0 {
		o.VectorMaxEdge = DefaultChainOptions().VectorMaxEdge
	}
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = DefaultChainOptions().ConvertTimeout
	}
	return o
}

// Rasterize walks the chain for the source's class. The first successful
// strategy wins. Exhaustion returns ErrConversionFailed wrapping every
// attempt error; cancellation of the surrounding context aborts the walk.
func (ch *Chain) Rasterize(ctx context.Context, src SourceFile) (image.Image, error) {
	var attempts []error
	applicable := false

	for _, s := range ch.strategies {
		if !s.CanConvert(src.Class) {
			continue
		}
		applicable = true

		img, err := s.Convert(ctx, src)
		if err == nil {
			return img, nil
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", s.Name(), err))

		// A per-attempt timeout is contained; cancellation of the
		// whole request is not.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if !applicable {
		return nil, fmt.Errorf("%w: no strategy handles class %s", ErrConversionFailed, src.Class)
	}
	return nil, fmt.Errorf("%w: %w", ErrConversionFailed, errors.Join(attempts...))
}
