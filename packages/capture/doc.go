// Package capture intercepts standard output, standard error and log output
// into buffers owned by the execution context for the duration of a run.
//
// The sequential scheduler acquires a process-level Capture around the whole
// suite; parallel workers each own a private Streams value instead, keeping
// every job's output isolated without touching global descriptors.
package capture
