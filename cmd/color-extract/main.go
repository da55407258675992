package main

import (
	"log"
	"os"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Configure logging to stderr (stdout is for the JSON report)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("COLOR_EXTRACT_LOG_LEVEL") == "debug" {
		log.Printf("color-extract v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	Execute()
}
