package raster

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ironsheep/color-extract/internal/classify"
)

// svgRenderStrategy parses the SVG scene graph with tdewolff/canvas and
// renders it anti-aliased to a pixel buffer whose longest edge is capped at
// maxEdge, preserving aspect ratio.
type svgRenderStrategy struct {
	maxEdge int
}

func (svgRenderStrategy) Name() string { return "svg-render" }

func (svgRenderStrategy) CanConvert(c classify.Class) bool { return c == classify.SvgVector }

func (s svgRenderStrategy) Convert(_ context.Context, src SourceFile) (image.Image, error) {
	c, err := canvas.ParseSVG(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if c.W <= 0 || c.H <= 0 {
		return nil, errors.New("svg has no intrinsic size")
	}

	// Canvas dimensions are in millimeters; the resolution is chosen so
	// the longest edge lands on maxEdge pixels.
	res := float64(s.maxEdge) / math.Max(c.W, c.H)
	return rasterizer.Draw(c, canvas.Resolution(res), canvas.DefaultColorSpace), nil
}

// svgPaletteStrategy is the fallback when rendering fails: it harvests the
// colors the document declares (fill/stroke attributes, style properties,
// gradient stop colors) and synthesizes a tiled swatch raster, one
// equal-sized tile per declared color in document order. Downstream
// clustering then treats the declared palette exactly like decoded pixels,
// with ties resolving in document order.
type svgPaletteStrategy struct{}

// swatchTile is the edge length of one synthesized color tile.
const swatchTile = 64

func (svgPaletteStrategy) Name() string { return "svg-palette" }

func (svgPaletteStrategy) CanConvert(c classify.Class) bool { return c == classify.SvgVector }

func (svgPaletteStrategy) Convert(_ context.Context, src SourceFile) (image.Image, error) {
	colors, err := harvestSVGColors(src.Data)
	if err != nil {
		return nil, fmt.Errorf("harvest svg colors: %w", err)
	}
	if len(colors) == 0 {
		return nil, errors.New("svg declares no resolvable colors")
	}

	img := image.NewNRGBA(image.Rect(0, 0, swatchTile*len(colors), swatchTile))
	for i, c := range colors {
		r := image.Rect(i*swatchTile, 0, (i+1)*swatchTile, swatchTile)
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img, nil
}

// harvestSVGColors walks the XML token stream collecting paint colors in
// document order, deduplicated on first occurrence. Elements hidden via
// display:none, visibility:hidden or opacity:0 contribute nothing;
// none/transparent/url(...) paint values are skipped.
func harvestSVGColors(data []byte) ([]color.NRGBA, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var out []color.NRGBA
	seen := make(map[color.NRGBA]bool)
	add := func(c color.NRGBA, ok bool) {
		if ok && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "svg" {
			sawRoot = true
		}

		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}
		if hidden(attrs) {
			continue
		}

		if start.Name.Local == "stop" {
			if v, ok := attrs["stop-color"]; ok {
				add(parseSVGColor(v))
			}
			for prop, val := range styleProps(attrs["style"]) {
				if prop == "stop-color" {
					add(parseSVGColor(val))
				}
			}
			continue
		}

		for _, attr := range []string{"fill", "stroke"} {
			if v, ok := attrs[attr]; ok && paintable(v) {
				add(parseSVGColor(v))
			}
		}
		for prop, val := range styleProps(attrs["style"]) {
			if (prop == "fill" || prop == "stroke") && paintable(val) {
				add(parseSVGColor(val))
			}
		}
	}

	if !sawRoot {
		return nil, errors.New("no svg root element")
	}
	return out, nil
}

func hidden(attrs map[string]string) bool {
	if attrs["display"] == "none" || attrs["visibility"] == "hidden" || attrs["opacity"] == "0" {
		return true
	}
	style := attrs["style"]
	return strings.Contains(style, "display:none") ||
		strings.Contains(style, "visibility:hidden") ||
		strings.Contains(style, "opacity:0")
}

func paintable(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v != "" && v != "none" && v != "transparent" && !strings.HasPrefix(v, "url(")
}

// styleProps splits an inline style attribute into property/value pairs.
func styleProps(style string) map[string]string {
	if style == "" {
		return nil
	}
	props := make(map[string]string)
	for _, part := range strings.Split(style, ";") {
		k, v, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		props[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return props
}

// svgNamedColors covers the named colors that actually appear in logo
// exports. Unknown names are skipped rather than guessed.
var svgNamedColors = map[string]color.NRGBA{
	"white":   {255, 255, 255, 255},
	"black":   {0, 0, 0, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"lime":    {0, 255, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"cyan":    {0, 255, 255, 255},
	"aqua":    {0, 255, 255, 255},
	"magenta": {255, 0, 255, 255},
	"fuchsia": {255, 0, 255, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"silver":  {192, 192, 192, 255},
	"maroon":  {128, 0, 0, 255},
	"navy":    {0, 0, 128, 255},
	"olive":   {128, 128, 0, 255},
	"purple":  {128, 0, 128, 255},
	"teal":    {0, 128, 128, 255},
	"orange":  {255, 165, 0, 255},
}

// parseSVGColor resolves #RGB, #RRGGBB, rgb(...) with integer or percent
// components, and a set of common named colors.
func parseSVGColor(v string) (color.NRGBA, bool) {
	v = strings.ToLower(strings.TrimSpace(v))

	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		if len(hex) == 3 {
			// #abc expands to #aabbcc.
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.NRGBA{}, false
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, false
		}
		return color.NRGBA{uint8(n >> 16), uint8(n >> 8), uint8(n), 255}, true
	}

	if strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba(") {
		open := strings.Index(v, "(")
		end := strings.Index(v, ")")
		if end < open {
			return color.NRGBA{}, false
		}
		parts := strings.Split(v[open+1:end], ",")
		if len(parts) < 3 {
			return color.NRGBA{}, false
		}
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			p := strings.TrimSpace(parts[i])
			if strings.HasSuffix(p, "%") {
				f, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
				if err != nil {
					return color.NRGBA{}, false
				}
				ch[i] = clamp255(f * 2.55)
			} else {
				f, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return color.NRGBA{}, false
				}
				ch[i] = clamp255(f)
			}
		}
		return color.NRGBA{ch[0], ch[1], ch[2], 255}, true
	}

	c, ok := svgNamedColors[v]
	return c, ok
}

func clamp255(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f + 0.5)
}
