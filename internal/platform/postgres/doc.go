// Package postgres implements the job store and scheduler lease provider
// on PostgreSQL. Counting queries are single statements so each result is
// a consistent snapshot, and every status transition is a guarded UPDATE
// (compare-and-swap) so concurrent workers and orchestrators can never
// both win the same transition.
package postgres
