package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/phrazzld/taskward/internal/queue"
)

// ReportMode selects how monitor output is rendered. Precedence when
// multiple flags are combined: check short-circuits everything, then JSON,
// then verbose, then the plain table.
type ReportMode int

// Report modes, lowest to highest precedence
const (
	// ModeTable renders queue status, job-status stats, and failed-job
	// stats as human-readable tables
	ModeTable ReportMode = iota

	// ModeVerbose is ModeTable plus the performance metrics section
	ModeVerbose

	// ModeJSON emits one machine-parseable JSON object with stable field
	// names
	ModeJSON

	// ModeCheck bypasses all rendering; only the process exit code carries
	// the verdict
	ModeCheck
)

// ModeFromFlags resolves possibly-combined CLI flags into a single mode
// using the documented precedence.
func ModeFromFlags(check, jsonOut, verbose bool) ReportMode {
	switch {
	case check:
		return ModeCheck
	case jsonOut:
		return ModeJSON
	case verbose:
		return ModeVerbose
	default:
		return ModeTable
	}
}

// WriteSnapshot renders a health snapshot in the given mode. ModeCheck
// writes nothing.
func WriteSnapshot(w io.Writer, mode ReportMode, snapshot *queue.HealthSnapshot) error {
	switch mode {
	case ModeCheck:
		return nil
	case ModeJSON:
		return writeJSON(w, snapshot)
	case ModeVerbose:
		if err := writeTables(w, snapshot); err != nil {
			return err
		}
		return writePerformance(w, snapshot.Performance)
	default:
		return writeTables(w, snapshot)
	}
}

// WriteError reports a monitor failure. JSON mode still emits a valid JSON
// document with an "error" field rather than malformed partial output;
// check mode stays silent and lets the exit code speak.
func WriteError(w io.Writer, mode ReportMode, err error) error {
	switch mode {
	case ModeCheck:
		return nil
	case ModeJSON:
		return json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	default:
		_, werr := fmt.Fprintf(w, "error: %v\n", err)
		return werr
	}
}

// WriteBatchResult renders retry sweep counts for the CLI.
func WriteBatchResult(w io.Writer, result queue.BatchResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTEMPTED\tREQUEUED\tSKIPPED\tFAILED")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", result.Attempted, result.Requeued, result.Skipped, result.Failed)
	return tw.Flush()
}

func writeJSON(w io.Writer, snapshot *queue.HealthSnapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

func writeTables(w io.Writer, snapshot *queue.HealthSnapshot) error {
	fmt.Fprintf(w, "Queue health as of %s\n", snapshot.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if snapshot.Healthy {
		fmt.Fprintln(w, "Status: HEALTHY")
	} else {
		fmt.Fprintln(w, "Status: UNHEALTHY")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "QUEUE\tPENDING\tPROCESSING")
	for _, name := range sortedQueueNames(snapshot.Queues) {
		counts := snapshot.Queues[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, counts.Pending, counts.Processing)
	}
	if total, ok := snapshot.Queues[queue.TotalQueue]; ok {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", queue.TotalQueue, total.Pending, total.Processing)
	}
	fmt.Fprintln(tw)

	stats := snapshot.JobStats
	fmt.Fprintln(tw, "PENDING\tPROCESSING\tCOMPLETED\tFAILED\tRETRYING\tSTUCK")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n",
		stats.Pending, stats.Processing, stats.Completed, stats.Failed, stats.Retrying, stats.Stuck)
	fmt.Fprintln(tw)

	failed := snapshot.FailedJobs
	fmt.Fprintln(tw, "FAILED TOTAL\tLAST 24H\tLAST 1H")
	fmt.Fprintf(tw, "%d\t%d\t%d\n", failed.Total, failed.Recent24h, failed.Recent1h)

	return tw.Flush()
}

func writePerformance(w io.Writer, perf queue.PerformanceMetrics) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "COMPLETED 24H\tAVG (S)\tMIN (S)\tMAX (S)\tMEDIAN (S)")
	fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
		perf.Completed24h, perf.AvgSeconds, perf.MinSeconds, perf.MaxSeconds, perf.MedianSeconds)
	return tw.Flush()
}

func sortedQueueNames(queues map[string]queue.QueueCounts) []string {
	names := make([]string, 0, len(queues))
	for name := range queues {
		if name == queue.TotalQueue {
			continue // rendered last
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
