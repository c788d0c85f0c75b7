// Package scheduler executes parsed feature suites against registered step
// implementations and aggregates their outcomes.
//
// It provides:
//   - Context: the scoped, provenance-tracked state bag handed to user code
//   - Runner: sequential execution of all features in the calling goroutine
//   - ParallelRunner: partitioning into feature- or scenario-granularity
//     jobs executed by a fixed-size worker pool over shared FIFO queues
//   - Aggregator: reconstruction of suite and feature totals from the
//     out-of-order per-job result stream
//
// In parallel mode every worker owns a private context, output buffer and
// formatter; work and results cross worker boundaries only through the two
// queues.
package scheduler
