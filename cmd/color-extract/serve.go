package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/color-extract/internal/extract"
	"github.com/ironsheep/color-extract/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction service over stdin/stdout",
	Long: `serve reads line-delimited JSON-RPC 2.0 requests from stdin and
writes one response line per request to stdout. File bytes travel
base64-encoded inside the request; results use the same envelope the
extract command prints. Intended for embedding in other processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := extract.DefaultOptions()
		opts.Workers = extractOpts.Workers
		srv := server.New(opts)
		return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&extractOpts.Workers, "workers", "w", 0, "Parallel file workers (0 = number of CPUs)")
	rootCmd.AddCommand(serveCmd)
}
