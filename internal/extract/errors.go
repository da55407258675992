package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironsheep/color-extract/internal/classify"
	"github.com/ironsheep/color-extract/internal/cluster"
	"github.com/ironsheep/color-extract/internal/raster"
)

// Kind is the file-scoped error taxonomy surfaced to callers. No kind is
// fatal to a batch: one failing file produces a descriptor while sibling
// files keep processing.
type Kind string

const (
	// KindUnsupportedFormat: neither content signature nor extension was
	// recognized.
	KindUnsupportedFormat Kind = "unsupported_format"

	// KindConversionFailed: the entire rasterization fallback chain was
	// exhausted.
	KindConversionFailed Kind = "conversion_failed"

	// KindDecodeError: a raster decoder rejected malformed bytes.
	KindDecodeError Kind = "decode_error"

	// KindEmptyImage: the decoded canvas holds zero pixels.
	KindEmptyImage Kind = "empty_image"

	// KindTimeout: an external conversion attempt exceeded its budget
	// and no later strategy recovered.
	KindTimeout Kind = "timeout"

	// KindCanceled: the surrounding request was canceled before this
	// file finished. Completed sibling results are unaffected.
	KindCanceled Kind = "canceled"

	// KindInternal: anything that escaped the taxonomy above.
	KindInternal Kind = "internal"
)

// FileError couples a failure to the file that caused it.
type FileError struct {
	Filename string
	Kind     Kind
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Filename, e.Kind, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// ClassifyError maps an error from any pipeline stage onto the taxonomy.
// The chain joins per-strategy errors inside the conversion-failed wrapper,
// so the specific causes are checked before it. Timeout and cancellation
// outrank decode errors: an exhausted chain holding a timed-out attempt
// reports timeout even when another strategy's output also failed to
// decode.
func ClassifyError(err error) Kind {
	switch {
	case errors.Is(err, classify.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, raster.ErrDecode):
		return KindDecodeError
	case errors.Is(err, cluster.ErrEmptyImage):
		return KindEmptyImage
	case errors.Is(err, raster.ErrConversionFailed):
		return KindConversionFailed
	default:
		return KindInternal
	}
}

// fileError wraps err for filename with its classified kind.
func fileError(filename string, err error) *FileError {
	return &FileError{Filename: filename, Kind: ClassifyError(err), Err: err}
}
