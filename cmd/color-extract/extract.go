package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ironsheep/color-extract/internal/extract"
)

var extractOpts struct {
	Workers        int
	MaxDim         int
	PreviewDim     int
	MergeThreshold float64
	MinClusterFrac float64
	ConvertTimeout time.Duration
	Denoise        float64
	OutPath        string
	Quiet          bool
}

var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract dominant color palettes from image files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd, args)
	},
}

func init() {
	f := extractCmd.Flags()
	f.IntVarP(&extractOpts.Workers, "workers", "w", 0, "Parallel file workers (0 = number of CPUs)")
	f.IntVar(&extractOpts.MaxDim, "max-dim", 0, "Longest edge of the working image fed to clustering (0 = default 800)")
	f.IntVar(&extractOpts.PreviewDim, "preview-dim", 0, "Longest edge of the base64 preview (0 = default 256)")
	f.Float64Var(&extractOpts.MergeThreshold, "merge-threshold", 0, "Perceptual distance below which clusters merge (0 = default 0.10)")
	f.Float64Var(&extractOpts.MinClusterFrac, "min-cluster-frac", 0, "Pixel fraction below which a cluster is dissolved as noise (0 = default 0.005)")
	f.DurationVar(&extractOpts.ConvertTimeout, "convert-timeout", 0, "Per-file timeout for external converters (0 = default 20s)")
	f.Float64Var(&extractOpts.Denoise, "denoise", 0, "Gaussian denoise radius applied before clustering (0 = off)")
	f.StringVarP(&extractOpts.OutPath, "out", "o", "", "Write the JSON report to a file instead of stdout")
	f.BoolVarP(&extractOpts.Quiet, "quiet", "q", false, "Suppress the progress bar")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, paths []string) error {
	if len(paths) > extract.MaxBatchSize {
		return fmt.Errorf("too many files: %d given, at most %d per run", len(paths), extract.MaxBatchSize)
	}

	files := make([]extract.Input, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, extract.Input{Name: path, Data: data})
	}

	opts := extract.DefaultOptions()
	opts.Workers = extractOpts.Workers
	opts.MaxWorkingDim = extractOpts.MaxDim
	opts.PreviewMaxDim = extractOpts.PreviewDim
	opts.DenoiseRadius = extractOpts.Denoise
	if extractOpts.MergeThreshold > 0 {
		opts.Cluster.MergeThreshold = extractOpts.MergeThreshold
	}
	if extractOpts.MinClusterFrac > 0 {
		opts.Cluster.MinClusterFrac = extractOpts.MinClusterFrac
	}
	if extractOpts.ConvertTimeout > 0 {
		opts.Chain.ConvertTimeout = extractOpts.ConvertTimeout
	}

	if !extractOpts.Quiet {
		bar := progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("extracting palettes"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
		opts.OnFileDone = func() { bar.Add(1) }
		defer func() {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}()
	}

	p := extract.New(opts)
	outcomes := p.ProcessBatch(cmd.Context(), files)
	env := extract.BuildEnvelope(outcomes)

	out := os.Stdout
	if extractOpts.OutPath != "" {
		fh, err := os.Create(extractOpts.OutPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", extractOpts.OutPath, err)
		}
		defer fh.Close()
		out = fh
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed; see error_kind entries in the report\n", failed, len(files))
	}
	return nil
}
