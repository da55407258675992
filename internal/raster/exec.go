package raster

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/color-extract/internal/classify"
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// toolStrategy shells out to an external converter. The binary is probed
// once; when it is missing the strategy reports unavailability as a normal
// attempt failure so the chain falls through. Every attempt runs under its
// own timeout and every temp artifact is removed before Convert returns.
type toolStrategy struct {
	name    string
	tools   []string // candidate binary names, first found wins
	timeout time.Duration
	// args builds the command line for a probed binary path, input file
	// and output PNG path.
	args func(in, out string) []string

	once      sync.Once
	available bool
	path      string
}

func newGhostscript(opts ChainOptions) *toolStrategy {
	return &toolStrategy{
		name:    "ghostscript",
		tools:   []string{"gs"},
		timeout: opts.ConvertTimeout,
		args: func(in, out string) []string {
			return []string{
				"-dSAFER", "-dBATCH", "-dNOPAUSE", "-dQUIET",
				"-sDEVICE=png16m",
				"-r300",
				"-dFirstPage=1", "-dLastPage=1",
				"-o", out,
				in,
			}
		},
	}
}

func newPdftoppm(opts ChainOptions) *toolStrategy {
	return &toolStrategy{
		name:    "pdftoppm",
		tools:   []string{"pdftoppm"},
		timeout: opts.ConvertTimeout,
		args: func(in, out string) []string {
			// pdftoppm appends .png itself.
			return []string{
				"-png",
				"-r", "300",
				"-f", "1", "-l", "1",
				"-singlefile",
				in,
				strings.TrimSuffix(out, ".png"),
			}
		},
	}
}

func newImageMagick(opts ChainOptions) *toolStrategy {
	return &toolStrategy{
		name:    "imagemagick",
		tools:   []string{"magick", "convert"},
		timeout: opts.ConvertTimeout,
		args: func(in, out string) []string {
			// [0] selects the first page of multi-page documents.
			return []string{"-density", "300", in + "[0]", out}
		},
	}
}

func (t *toolStrategy) Name() string { return t.name }

func (t *toolStrategy) CanConvert(c classify.Class) bool { return c == classify.ProprietaryVector }

// Available probes the candidate binaries once.
func (t *toolStrategy) Available() bool {
	t.once.Do(func() {
		for _, tool := range t.tools {
			if path, err := exec.LookPath(tool); err == nil {
				t.available = true
				t.path = path
				return
			}
		}
	})
	return t.available
}

func (t *toolStrategy) Convert(ctx context.Context, src SourceFile) (image.Image, error) {
	if !t.Available() {
		return nil, fmt.Errorf("%s not found in PATH", strings.Join(t.tools, "/"))
	}

	// Stage the input bytes under a private temp name; some converters
	// key behavior off the extension, so keep the original one.
	id := tempCounter.Add(1)
	ext := filepath.Ext(src.Name)
	if ext == "" {
		ext = ".eps"
	}
	in, err := os.CreateTemp("", fmt.Sprintf("colorextract_src_%d_*%s", id, ext))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)
	if _, err := in.Write(src.Data); err != nil {
		in.Close()
		return nil, fmt.Errorf("stage input: %w", err)
	}
	in.Close()

	out, err := os.CreateTemp("", fmt.Sprintf("colorextract_dst_%d_*.png", id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(attemptCtx, t.path, t.args(inPath, outPath)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		// Surface the deadline so the caller can classify a timeout
		// distinctly from an ordinary converter failure.
		if ctxErr := attemptCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", t.name, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %s", t.name, err, strings.TrimSpace(string(output)))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read converted output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s produced empty output", t.name)
	}

	img, err := decodeStrategy{}.Convert(ctx, SourceFile{
		Name:  outPath,
		Data:  data,
		Class: classify.Raster,
	})
	if err != nil {
		return nil, fmt.Errorf("decode converted output: %w", err)
	}
	return img, nil
}
