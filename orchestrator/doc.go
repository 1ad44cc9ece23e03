// Package orchestrator connects the caller side to the pipeline service.
//
// Client speaks the pipeline HTTP protocol and classifies its failures.
// Queue runs background tasks on an ants pool with a retry policy.
// Orchestrator combines both: ingestion is dispatched and acknowledged as
// PROCESSING at once, and the source status becomes COMPLETED or FAILED
// when the task ends. Tasks for the same source never overlap, so a
// delete dispatched before a re-ingest always lands first.
package orchestrator
