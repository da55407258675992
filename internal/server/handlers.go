package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ironsheep/color-extract/internal/extract"
)

// ExtractParams represents the parameters for an extract request.
type ExtractParams struct {
	Files []FileParam `json:"files"`
}

// FileParam is one input file: a declared name plus base64-encoded bytes.
type FileParam struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// handleExtract decodes the batch, runs the pipeline and returns the
// result envelope. Per-file failures are carried inside the envelope;
// only a malformed request produces a JSON-RPC error.
func (s *Server) handleExtract(ctx context.Context, req *Request) *Response {
	var params ExtractParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Files) == 0 {
		return errorResponse(req.ID, -32602, "Invalid params", "files must not be empty")
	}
	if len(params.Files) > extract.MaxBatchSize {
		return errorResponse(req.ID, -32602, "Invalid params",
			fmt.Sprintf("too many files: %d given, at most %d per request", len(params.Files), extract.MaxBatchSize))
	}

	files := make([]extract.Input, 0, len(params.Files))
	for _, f := range params.Files {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			return errorResponse(req.ID, -32602, "Invalid params",
				fmt.Sprintf("file %q: invalid base64 data: %v", f.Filename, err))
		}
		files = append(files, extract.Input{Name: f.Filename, Data: data})
	}

	outcomes := s.pipeline.ProcessBatch(ctx, files)
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  extract.BuildEnvelope(outcomes),
	}
}
