package extract

import (
	"context"
	"encoding/json"
	"image/color"
	"strings"
	"sync/atomic"
	"testing"
)

func TestProcessBatch_PreservesInputOrder(t *testing.T) {
	files := []Input{
		{Name: "red.png", Data: solidPNG(t, 8, 8, color.NRGBA{255, 0, 0, 255})},
		{Name: "bad.txt", Data: []byte("not an image")},
		{Name: "blue.png", Data: solidPNG(t, 8, 8, color.NRGBA{0, 0, 255, 255})},
	}

	opts := DefaultOptions()
	opts.Workers = 4
	p := New(opts)

	outcomes := p.ProcessBatch(context.Background(), files)
	if len(outcomes) != len(files) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(files))
	}
	if outcomes[0].Err != nil || outcomes[0].Result.Colors[0] != "#FF0000" {
		t.Errorf("outcome 0: got %+v, want red result", outcomes[0])
	}
	if outcomes[1].Err == nil || outcomes[1].Err.Kind != KindUnsupportedFormat {
		t.Errorf("outcome 1: got %+v, want unsupported_format", outcomes[1].Err)
	}
	if outcomes[2].Err != nil || outcomes[2].Result.Colors[0] != "#0000FF" {
		t.Errorf("outcome 2: got %+v, want blue result", outcomes[2])
	}
}

func TestProcessBatch_FailureDoesNotStopOthers(t *testing.T) {
	files := []Input{
		{Name: "broken.png", Data: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 'x'}},
		{Name: "ok.png", Data: solidPNG(t, 8, 8, color.NRGBA{10, 20, 30, 255})},
	}

	p := New(DefaultOptions())
	outcomes := p.ProcessBatch(context.Background(), files)

	if outcomes[0].Err == nil || outcomes[0].Err.Kind != KindDecodeError {
		t.Errorf("broken file: got %+v, want decode_error", outcomes[0].Err)
	}
	if outcomes[1].Err != nil {
		t.Errorf("healthy file failed: %v", outcomes[1].Err)
	}
}

func TestProcessBatch_OnFileDoneCount(t *testing.T) {
	files := make([]Input, 5)
	for i := range files {
		files[i] = Input{Name: "f.png", Data: solidPNG(t, 4, 4, color.NRGBA{uint8(i * 40), 0, 0, 255})}
	}

	var done atomic.Int64
	opts := DefaultOptions()
	opts.Workers = 2
	opts.OnFileDone = func() { done.Add(1) }
	p := New(opts)

	p.ProcessBatch(context.Background(), files)
	if got := done.Load(); got != int64(len(files)) {
		t.Errorf("OnFileDone fired %d times, want %d", got, len(files))
	}
}

func TestProcessBatch_PreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []Input{
		{Name: "a.png", Data: solidPNG(t, 4, 4, color.NRGBA{1, 2, 3, 255})},
		{Name: "b.png", Data: solidPNG(t, 4, 4, color.NRGBA{4, 5, 6, 255})},
	}
	p := New(DefaultOptions())
	outcomes := p.ProcessBatch(ctx, files)

	for i, o := range outcomes {
		if o.Err == nil || o.Err.Kind != KindCanceled {
			t.Errorf("outcome %d: got %+v, want canceled", i, o.Err)
		}
	}
}

func TestProcessBatch_CancelRetainsCompletedResults(t *testing.T) {
	want := map[string]string{
		"red.png":   "#FF0000",
		"green.png": "#00FF00",
		"blue.png":  "#0000FF",
	}
	files := []Input{
		{Name: "red.png", Data: solidPNG(t, 8, 8, color.NRGBA{255, 0, 0, 255})},
		{Name: "green.png", Data: solidPNG(t, 8, 8, color.NRGBA{0, 255, 0, 255})},
		{Name: "blue.png", Data: solidPNG(t, 8, 8, color.NRGBA{0, 0, 255, 255})},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// With a single worker, canceling inside the completion hook fires
	// before the worker slot is released, so every later file observes
	// the canceled context up front. Which file runs first is up to the
	// scheduler; exactly one must finish either way.
	opts := DefaultOptions()
	opts.Workers = 1
	opts.OnFileDone = func() { cancel() }
	p := New(opts)

	outcomes := p.ProcessBatch(ctx, files)

	completed := 0
	for i, o := range outcomes {
		switch {
		case o.Result != nil:
			completed++
			if got := o.Result.Colors[0]; got != want[files[i].Name] {
				t.Errorf("%s: retained result carries colors %v, want [%s]",
					files[i].Name, o.Result.Colors, want[files[i].Name])
			}
		case o.Err != nil && o.Err.Kind == KindCanceled:
			// Pending file, correctly marked.
		default:
			t.Errorf("outcome %d: got %+v, want retained result or canceled", i, o)
		}
	}
	if completed != 1 {
		t.Errorf("%d files completed, want exactly 1 with a single worker canceled after the first", completed)
	}
}

func TestBuildEnvelope_JSONShape(t *testing.T) {
	files := []Input{
		{Name: "ok.png", Data: solidPNG(t, 8, 8, color.NRGBA{0, 128, 0, 255})},
		{Name: "nope.txt", Data: []byte("text")},
	}
	p := New(DefaultOptions())
	env := BuildEnvelope(p.ProcessBatch(context.Background(), files))

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	s := string(raw)

	for _, want := range []string{
		`"filename":"ok.png"`,
		`"count":1`,
		`"colors":["#008000"]`,
		`"data:image/png;base64,`,
		`"filename":"nope.txt"`,
		`"error_kind":"unsupported_format"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("envelope JSON missing %s:\n%s", want, s)
		}
	}
	// Failed entries carry no result fields.
	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if decoded.Results[1].Count != 0 || decoded.Results[1].Preview != "" {
		t.Errorf("failed entry leaked result fields: %+v", decoded.Results[1])
	}
}
