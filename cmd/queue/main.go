// Command queue is the operational CLI for the job queue: health
// monitoring, retry sweeps, terminal-job flushes, worker restarts, and
// schema migrations.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		// The check probe communicates through the exit code alone.
		if errors.Is(err, errUnhealthy) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
