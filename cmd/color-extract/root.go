package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "color-extract",
	Short: "Dominant color extraction for logo and artwork files",
	Long: `color-extract reads raster and vector image files (PNG, JPEG, GIF,
BMP, TIFF, WebP, SVG, EPS, AI, PDF) and reports each file's dominant
colors as an ordered palette, most prominent first, together with a
small base64 preview of the normalized image.

Vector and PostScript formats are rasterized first; EPS/AI/PDF inputs
need one of ghostscript, pdftoppm or imagemagick on the PATH.`,
}

// Execute runs the root command under a signal-aware context so Ctrl+C
// cancels in-flight conversions cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
