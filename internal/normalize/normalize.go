// Package normalize prepares a decoded raster for color clustering.
//
// The pipeline applies, in order: alpha compositing onto an opaque white
// background, an optional Gaussian denoise for photographic or scanned
// inputs, gray-world color constancy to neutralize illumination cast, and a
// bounded downscale of the working copy. Every step returns a new buffer;
// the decoded source image is never mutated.
package normalize

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

const (
	// MaxWorkingDim bounds the longest edge of the working copy handed to
	// the clustering engine. Larger inputs are Lanczos-downscaled.
	MaxWorkingDim = 800

	// neutralSpread is the maximum max-min channel spread for a pixel to
	// count as near-neutral when estimating illumination cast.
	neutralSpread = 48

	// minNeutralFrac is the minimum fraction of near-neutral pixels
	// required before gray-world correction is trusted. Below this the
	// image has no reliable illumination probe (a solid saturated logo,
	// for example) and the correction is skipped.
	minNeutralFrac = 0.05

	// Channel scale factors are clamped to this range so a skewed probe
	// cannot blow out or crush a channel.
	minScale = 0.5
	maxScale = 2.0
)

// ToNRGBA copies an image into a zero-origin NRGBA buffer. Non-premultiplied
// components are required by Composite, which blends raw channel values
// against the background.
func ToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// Composite blends every pixel onto an opaque white background using
// standard alpha blending: out = src*a + bg*(1-a), computed in integer math
// with rounding. Fully transparent pixels become exactly white, so a blank
// canvas can later be reported as the named color "white". The result always
// has alpha 255 everywhere.
func Composite(img image.Image) *image.NRGBA {
	src := ToNRGBA(img)
	out := image.NewNRGBA(src.Bounds())

	for i := 0; i < len(src.Pix); i += 4 {
		a := uint32(src.Pix[i+3])
		if a == 255 {
			copy(out.Pix[i:i+4], src.Pix[i:i+4])
			continue
		}
		inv := 255 - a
		for c := 0; c < 3; c++ {
			v := uint32(src.Pix[i+c])
			out.Pix[i+c] = uint8((v*a + 255*inv + 127) / 255)
		}
		out.Pix[i+3] = 255
	}
	return out
}

// Denoise applies a Gaussian blur with the given radius to stabilize
// clustering on textured or noisy inputs. A radius <= 0 disables the step
// and returns the input unchanged. Denoising is deliberately opt-in: it
// smears pixel values across region boundaries, which is desirable on scans
// but would break exact color reproduction on flat artwork.
func Denoise(img image.Image, radius float64) image.Image {
	if radius <= 0 {
		return img
	}
	return blur.Gaussian(img, radius)
}

// GrayWorld estimates a global illumination cast under the gray-world
// assumption and rescales channels so their means equalize.
//
// The estimate is taken only from near-neutral pixels (channel spread at
// most neutralSpread): on a logo scanned under warm light the paper
// background drives the estimate, while the ink colors are left to be
// corrected. If fewer than minNeutralFrac of pixels are near-neutral there
// is nothing safe to calibrate against and the image is returned as an
// untouched copy. The input buffer is never modified.
func GrayWorld(src *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(src.Bounds())
	copy(out.Pix, src.Pix)

	total := len(src.Pix) / 4
	if total == 0 {
		return out
	}

	var sumR, sumG, sumB uint64
	neutral := 0
	uniform := true
	r0, g0, b0 := src.Pix[0], src.Pix[1], src.Pix[2]
	for i := 0; i < len(src.Pix); i += 4 {
		r, g, b := src.Pix[i], src.Pix[i+1], src.Pix[i+2]
		if r != r0 || g != g0 || b != b0 {
			uniform = false
		}
		if spread(r, g, b) > neutralSpread {
			continue
		}
		sumR += uint64(r)
		sumG += uint64(g)
		sumB += uint64(b)
		neutral++
	}

	// A uniform canvas carries no chromatic structure to separate;
	// rescaling it would just repaint the one color it has.
	if uniform {
		return out
	}
	if float64(neutral) < minNeutralFrac*float64(total) {
		return out
	}

	meanR := float64(sumR) / float64(neutral)
	meanG := float64(sumG) / float64(neutral)
	meanB := float64(sumB) / float64(neutral)
	gray := (meanR + meanG + meanB) / 3

	scaleR := clampScale(gray / (meanR + 1e-6))
	scaleG := clampScale(gray / (meanG + 1e-6))
	scaleB := clampScale(gray / (meanB + 1e-6))

	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = scaleChannel(out.Pix[i], scaleR)
		out.Pix[i+1] = scaleChannel(out.Pix[i+1], scaleG)
		out.Pix[i+2] = scaleChannel(out.Pix[i+2], scaleB)
	}
	return out
}

// Downscale shrinks the image so its longest edge does not exceed maxDim,
// preserving aspect ratio with Lanczos resampling. Images already within
// bounds pass through unchanged.
func Downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}

func spread(r, g, b uint8) int {
	min, max := int(r), int(r)
	for _, v := range []uint8{g, b} {
		if int(v) < min {
			min = int(v)
		}
		if int(v) > max {
			max = int(v)
		}
	}
	return max - min
}

func clampScale(s float64) float64 {
	if s < minScale {
		return minScale
	}
	if s > maxScale {
		return maxScale
	}
	return s
}

func scaleChannel(v uint8, scale float64) uint8 {
	scaled := float64(v)*scale + 0.5
	if scaled > 255 {
		return 255
	}
	if scaled < 0 {
		return 0
	}
	return uint8(scaled)
}
