// Package queue implements the queue health monitoring and job-lifecycle
// management layer that backs background processing (notification delivery,
// reminder dispatch). It classifies job lifecycle states, detects jobs stuck
// mid-execution, computes failure and latency statistics, derives a single
// healthy/unhealthy verdict, and drives the bounded-attempts retry policy
// for failed jobs.
package queue
