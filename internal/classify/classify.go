// Package classify assigns an incoming file to a format class before any
// decoding happens. Classification is pure: it looks at content signatures
// (magic bytes, XML root element) first and falls back to the filename
// extension only when the signature is ambiguous.
package classify

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

// Class is the broad format family a file belongs to. The class decides
// which rasterization strategies apply downstream.
type Class int

const (
	// Unknown means neither the content signature nor the extension was
	// recognized.
	Unknown Class = iota

	// Raster covers directly decodable pixel formats: PNG, JPEG, GIF,
	// WEBP, BMP and TIFF.
	Raster

	// SvgVector is an SVG document that must be rendered to pixels.
	SvgVector

	// ProprietaryVector covers print/vector formats that need external
	// conversion: AI, EPS, PS and PDF.
	ProprietaryVector
)

// String returns a short lowercase name for the class.
func (c Class) String() string {
	switch c {
	case Raster:
		return "raster"
	case SvgVector:
		return "svg"
	case ProprietaryVector:
		return "vector"
	default:
		return "unknown"
	}
}

// ErrUnsupportedFormat is returned when both the content signature and the
// filename extension are unrecognized.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// rasterSignatures maps well-known magic byte prefixes to the Raster class.
var rasterSignatures = [][]byte{
	{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, // PNG
	{0xFF, 0xD8, 0xFF},                            // JPEG
	[]byte("GIF87a"),
	[]byte("GIF89a"),
	[]byte("BM"),                   // BMP
	{0x49, 0x49, 0x2A, 0x00},      // TIFF little-endian
	{0x4D, 0x4D, 0x00, 0x2A},      // TIFF big-endian
}

var extensionClasses = map[string]Class{
	".png":  Raster,
	".jpg":  Raster,
	".jpeg": Raster,
	".gif":  Raster,
	".webp": Raster,
	".bmp":  Raster,
	".tiff": Raster,
	".tif":  Raster,
	".svg":  SvgVector,
	".ai":   ProprietaryVector,
	".eps":  ProprietaryVector,
	".ps":   ProprietaryVector,
	".pdf":  ProprietaryVector,
}

// Detect classifies raw file content. The signature always wins over the
// extension: PNG bytes named logo.eps classify as Raster. The extension is
// consulted only when the content is ambiguous, and ErrUnsupportedFormat is
// returned only when both are unrecognized.
func Detect(data []byte, filename string) (Class, error) {
	if c := sniff(data); c != Unknown {
		return c, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if c, ok := extensionClasses[ext]; ok {
		return c, nil
	}
	return Unknown, ErrUnsupportedFormat
}

// sniff inspects the leading bytes of the file content.
func sniff(data []byte) Class {
	for _, sig := range rasterSignatures {
		if bytes.HasPrefix(data, sig) {
			return Raster
		}
	}

	// WEBP: RIFF container with WEBP fourcc at offset 8.
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return Raster
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}

	// PostScript family: EPS, plain PS, and classic (non-PDF) AI exports.
	if bytes.HasPrefix(head, []byte("%!PS")) {
		return ProprietaryVector
	}
	if bytes.HasPrefix(head, []byte("%PDF")) {
		return ProprietaryVector
	}
	// DOS EPS binary header.
	if bytes.HasPrefix(head, []byte{0xC5, 0xD0, 0xD3, 0xC6}) {
		return ProprietaryVector
	}

	// SVG: a <svg root element within the sniff window. Leading
	// whitespace, XML prologue, comments and doctype are tolerated by
	// searching rather than anchoring at byte zero. An XML prologue alone
	// is not enough; generic XML stays Unknown.
	if bytes.Contains(head, []byte("<svg")) {
		return SvgVector
	}

	return Unknown
}
