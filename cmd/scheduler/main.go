// Command scheduler runs the distributed task coordinator: periodic queue
// health checks and reports, retry sweeps, reminder dispatch, terminal-job
// flushes, and daily worker restarts, with cluster-exclusive tasks fenced
// through database leases.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
