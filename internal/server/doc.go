// Package server exposes the extraction pipeline as a line-delimited
// JSON-RPC 2.0 service over a reader/writer pair, normally stdin and
// stdout. Each request line carries one method call; each response is
// written back as a single JSON line.
//
// Supported methods:
//
//	extract - run color extraction over a batch of files, each supplied
//	          as a filename plus base64-encoded bytes. The result is the
//	          same envelope the CLI prints.
//	ping    - liveness check, returns an empty object.
//
// Batch limits and per-file error reporting follow the extract package:
// a failed file becomes an error entry inside the envelope, and only
// malformed requests produce JSON-RPC level errors.
package server
