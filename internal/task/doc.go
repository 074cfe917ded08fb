// Package task implements priority-queued task scheduling and execution.
// It provides a per-instance task registry, a blocking priority queue, a
// bounded worker pool with retry and exponential backoff, pre-execution
// cancellation, deferred-execution bookkeeping, sequential workflows and
// on-demand statistics.
package task
