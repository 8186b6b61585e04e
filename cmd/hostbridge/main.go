// Command hostbridge supervises a VSCode-compatible extension host for a
// JetBrains IDE: it provisions the Node.js runtime, reconciles the shell
// environment, launches the host payload, and keeps it alive until asked
// to stop.
package main

import (
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
