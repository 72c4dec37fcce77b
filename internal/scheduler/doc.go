// Package scheduler runs named tasks on fixed cadences with two independent
// guarantees: a task still running when its next tick arrives is skipped on
// that node (overlap guard), and cluster-exclusive tasks execute on exactly
// one node per tick, arbitrated through an injected LeaseProvider. Task
// outcomes are reported through an EventSink so the coordinator stays
// decoupled from any logging or alerting backend.
package scheduler
