package extract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"
	"testing"
)

func pngFixture(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return pngFixture(t, img)
}

func TestProcessFile_SolidColor(t *testing.T) {
	p := New(DefaultOptions())
	data := solidPNG(t, 20, 20, color.NRGBA{180, 40, 90, 255})

	res, err := p.ProcessFile(context.Background(), "solid.png", data)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("count: got %d, want 1", res.Count)
	}
	if res.Colors[0] != "#B4285A" {
		t.Errorf("color: got %s, want #B4285A", res.Colors[0])
	}
	if !strings.HasPrefix(res.Preview, "data:image/png;base64,") {
		t.Error("preview is not a PNG data URI")
	}
}

func TestProcessFile_FullyTransparentIsWhite(t *testing.T) {
	p := New(DefaultOptions())
	data := solidPNG(t, 10, 10, color.NRGBA{0, 0, 0, 0})

	res, err := p.ProcessFile(context.Background(), "blank.png", data)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if res.Count != 1 || len(res.Colors) != 1 || res.Colors[0] != "white" {
		t.Errorf("got count=%d colors=%v, want exactly [white]", res.Count, res.Colors)
	}
}

func TestProcessFile_TwoByTwoScanOrder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(0, 1, color.NRGBA{0, 255, 0, 255})
	img.SetNRGBA(1, 1, color.NRGBA{0, 0, 255, 255})

	p := New(DefaultOptions())
	res, err := p.ProcessFile(context.Background(), "tiny.png", pngFixture(t, img))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	want := []string{"#FF0000", "#00FF00", "#0000FF"}
	if !reflect.DeepEqual(res.Colors, want) {
		t.Errorf("colors: got %v, want %v (red dominant, then green before blue by scan order)",
			res.Colors, want)
	}
}

func TestProcessFile_Deterministic(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 5), uint8(y * 5), 120, 255})
		}
	}
	data := pngFixture(t, img)

	p := New(DefaultOptions())
	first, err := p.ProcessFile(context.Background(), "grad.png", data)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := p.ProcessFile(context.Background(), "grad.png", data)
		if err != nil {
			t.Fatalf("rerun failed: %v", err)
		}
		if !reflect.DeepEqual(first.Colors, again.Colors) {
			t.Fatalf("run %d: colors differ: %v vs %v", i, first.Colors, again.Colors)
		}
	}
}

func TestProcessFile_NoAlphaInReportedColors(t *testing.T) {
	// A half-transparent overlay must come out as opaque blends; every
	// reported value is either a name or a 7-char #RRGGBB hex.
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			a := uint8(255)
			if x < 10 {
				a = 100
			}
			img.SetNRGBA(x, y, color.NRGBA{200, 30, 30, a})
		}
	}

	p := New(DefaultOptions())
	res, err := p.ProcessFile(context.Background(), "overlay.png", pngFixture(t, img))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	for _, c := range res.Colors {
		if c == "white" || c == "black" {
			continue
		}
		if len(c) != 7 || c[0] != '#' {
			t.Errorf("color %q is not an alpha-free #RRGGBB value", c)
		}
	}
}

func TestProcessFile_ErrorKinds(t *testing.T) {
	p := New(DefaultOptions())

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     Kind
	}{
		{
			"unsupported",
			"notes.txt",
			[]byte("plain text"),
			KindUnsupportedFormat,
		},
		{
			"malformed recognized extension",
			"broken.png",
			append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte("junk")...),
			KindDecodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ProcessFile(context.Background(), tt.filename, tt.data)
			fe, ok := err.(*FileError)
			if !ok {
				t.Fatalf("got %T, want *FileError", err)
			}
			if fe.Kind != tt.want {
				t.Errorf("kind: got %s, want %s", fe.Kind, tt.want)
			}
			if fe.Filename != tt.filename {
				t.Errorf("filename: got %s, want %s", fe.Filename, tt.filename)
			}
		})
	}
}

func TestProcessFile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(DefaultOptions())
	_, err := p.ProcessFile(ctx, "x.png", solidPNG(t, 4, 4, color.NRGBA{1, 2, 3, 255}))
	fe, ok := err.(*FileError)
	if !ok || fe.Kind != KindCanceled {
		t.Errorf("got %v, want FileError with kind canceled", err)
	}
}

func TestProcessFile_SVGPaletteFallback(t *testing.T) {
	// Width/height of zero defeats the renderer, so the declared-color
	// fallback must carry the file.
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="0" height="0">
		<rect fill="#336699"/>
	</svg>`)

	p := New(DefaultOptions())
	res, err := p.ProcessFile(context.Background(), "flat.svg", svg)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	found := false
	for _, c := range res.Colors {
		if c == "#336699" {
			found = true
		}
	}
	if !found {
		t.Errorf("declared color missing from %v", res.Colors)
	}
}
