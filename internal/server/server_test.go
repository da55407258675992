package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/ironsheep/color-extract/internal/extract"
)

func solidPNGBase64(t *testing.T, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"req-1","method":"extract"}`,
			"req-1",
			"extract",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v, want %v", req.ID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %v, want %v", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := New(extract.DefaultOptions())
	resp := s.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 1, Method: "ping"})
	if resp.Error != nil {
		t.Fatalf("ping failed: %+v", resp.Error)
	}
}

func TestHandleRequest_UnknownMethod(t *testing.T) {
	s := New(extract.DefaultOptions())
	resp := s.handleRequest(context.Background(), &Request{JSONRPC: "2.0", ID: 1, Method: "bogus"})
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("got %+v, want -32601 method not found", resp.Error)
	}
}

func TestHandleExtract_RoundTrip(t *testing.T) {
	s := New(extract.DefaultOptions())

	params, _ := json.Marshal(ExtractParams{Files: []FileParam{
		{Filename: "red.png", Data: solidPNGBase64(t, color.NRGBA{255, 0, 0, 255})},
		{Filename: "note.txt", Data: base64.StdEncoding.EncodeToString([]byte("text"))},
	}})
	resp := s.handleRequest(context.Background(), &Request{
		JSONRPC: "2.0", ID: "batch-1", Method: "extract", Params: params,
	})
	if resp.Error != nil {
		t.Fatalf("extract failed: %+v", resp.Error)
	}

	env, ok := resp.Result.(extract.Envelope)
	if !ok {
		t.Fatalf("result is %T, want extract.Envelope", resp.Result)
	}
	if len(env.Results) != 2 {
		t.Fatalf("got %d entries, want 2", len(env.Results))
	}
	if env.Results[0].Colors[0] != "#FF0000" {
		t.Errorf("red file: got %v", env.Results[0].Colors)
	}
	if env.Results[1].ErrorKind != "unsupported_format" {
		t.Errorf("text file: got kind %q, want unsupported_format", env.Results[1].ErrorKind)
	}
}

func TestHandleExtract_InvalidParams(t *testing.T) {
	s := New(extract.DefaultOptions())

	tooMany := ExtractParams{}
	for i := 0; i <= extract.MaxBatchSize; i++ {
		tooMany.Files = append(tooMany.Files, FileParam{Filename: "f.png", Data: "AA=="})
	}
	tooManyRaw, _ := json.Marshal(tooMany)

	tests := []struct {
		name   string
		params json.RawMessage
	}{
		{"malformed json", json.RawMessage(`{`)},
		{"empty batch", json.RawMessage(`{"files":[]}`)},
		{"bad base64", json.RawMessage(`{"files":[{"filename":"a.png","data":"!!!"}]}`)},
		{"over batch limit", tooManyRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleRequest(context.Background(), &Request{
				JSONRPC: "2.0", ID: 7, Method: "extract", Params: tt.params,
			})
			if resp.Error == nil || resp.Error.Code != -32602 {
				t.Errorf("got %+v, want -32602 invalid params", resp.Error)
			}
		})
	}
}

func TestRun_LineProtocol(t *testing.T) {
	s := New(extract.DefaultOptions())

	var in bytes.Buffer
	fmt.Fprintf(&in, `{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n")
	fmt.Fprintf(&in, `{"jsonrpc":"2.0","id":2,"method":"extract","params":{"files":[{"filename":"b.png","data":%q}]}}`+"\n",
		solidPNGBase64(t, color.NRGBA{0, 0, 255, 255}))
	fmt.Fprintf(&in, "not json\n")

	var out bytes.Buffer
	if err := s.Run(context.Background(), &in, &out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d response lines, want 3:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], `"#0000FF"`) {
		t.Errorf("extract response missing blue palette: %s", lines[1])
	}
	if !strings.Contains(lines[2], `-32700`) {
		t.Errorf("garbage line should yield parse error: %s", lines[2])
	}
}
