// Package bridge serializes all hardware access behind a single worker.
//
// Every transport submits operations here; the worker owns the device
// Handle exclusively and executes or skips one operation at a time in FIFO
// order. Callers wait with absolute deadlines and may abandon an operation
// without interrupting the worker; a late hardware result for an abandoned
// operation is discarded.
//
// The worker probes the device only when the session is not known to be
// connected, fires the touch notifier exactly once per code generation
// that reaches hardware, and reports completions to an Observer for
// metrics, events, and audit.
package bridge
