// Package embedding provides the shared embedding engine.
//
// An Engine wraps one ai.Embedder for the lifetime of the process. Texts
// are embedded in batches on a worker pool so that model calls do not run
// on request goroutines; callers still block until their vectors are ready.
// Output order always matches input order.
//
// NewEngine probes the model once and fails when it cannot produce a
// vector, so a process that cannot embed never starts serving.
package embedding
