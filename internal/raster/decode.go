package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WEBP format decoder

	"github.com/ironsheep/color-extract/internal/classify"
)

// decodeStrategy decodes directly decodable raster formats. Multi-frame
// formats (animated GIF, multi-page TIFF) yield the first frame only, which
// is what the registered decoders return from a plain Decode.
type decodeStrategy struct{}

func (decodeStrategy) Name() string { return "decode" }

func (decodeStrategy) CanConvert(c classify.Class) bool { return c == classify.Raster }

func (decodeStrategy) Convert(_ context.Context, src SourceFile) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}
