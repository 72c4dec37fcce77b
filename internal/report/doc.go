// Package report renders health engine output for operators and machines:
// human-readable tables, a stable JSON document for monitoring ingestion,
// and a silent check-only mode for automated health gating.
package report
