package extract

import (
	"context"
	"sync"
)

// Input is one (filename, bytes) pair handed in by the enclosing
// transport.
type Input struct {
	Name string
	Data []byte
}

// Outcome is the per-file batch result: exactly one of Result or Err is
// set.
type Outcome struct {
	Result *Result
	Err    *FileError
}

// ProcessBatch runs every input through the pipeline on a fixed-size
// worker pool. Outcomes are returned in input order no matter which worker
// finishes first, each file is processed at most once, and file pipelines
// share no mutable state.
//
// Cancelling ctx stops queued and in-flight files: they come back with a
// canceled descriptor while results that already completed are retained
// untouched.
func (p *Pipeline) ProcessBatch(ctx context.Context, files []Input) []Outcome {
	outcomes := make([]Outcome, len(files))

	workers := p.opts.Workers
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i, f := range files {
		wg.Add(1)
		go func(idx int, in Input) {
			defer wg.Done()
			sem <- struct{}{} // acquire
			defer func() { <-sem }() // release

			res, err := p.ProcessFile(ctx, in.Name, in.Data)
			if err != nil {
				outcomes[idx] = Outcome{Err: asFileError(in.Name, err)}
			} else {
				outcomes[idx] = Outcome{Result: res}
			}
			if p.opts.OnFileDone != nil {
				p.opts.OnFileDone()
			}
		}(i, f)
	}
	wg.Wait()

	return outcomes
}

// asFileError guarantees the batch surface only ever reports *FileError.
func asFileError(filename string, err error) *FileError {
	if fe, ok := err.(*FileError); ok {
		return fe
	}
	return fileError(filename, err)
}

// Envelope is the boundary contract with the enclosing transport: the
// ordered sequence of per-file entries it serializes back to the client.
type Envelope struct {
	Results []Entry `json:"results"`
}

// Entry is one serialized outcome. Success entries carry count, colors and
// preview; failure entries carry the error kind and message.
type Entry struct {
	Filename  string   `json:"filename"`
	Count     int      `json:"count,omitempty"`
	Colors    []string `json:"colors,omitempty"`
	Preview   string   `json:"preview,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// BuildEnvelope flattens batch outcomes into the response envelope,
// preserving order.
func BuildEnvelope(outcomes []Outcome) Envelope {
	env := Envelope{Results: make([]Entry, 0, len(outcomes))}
	for _, o := range outcomes {
		if o.Err != nil {
			env.Results = append(env.Results, Entry{
				Filename:  o.Err.Filename,
				ErrorKind: string(o.Err.Kind),
				Error:     o.Err.Err.Error(),
			})
			continue
		}
		env.Results = append(env.Results, Entry{
			Filename: o.Result.Filename,
			Count:    o.Result.Count,
			Colors:   o.Result.Colors,
			Preview:  o.Result.Preview,
		})
	}
	return env
}
