// Package ingestion turns knowledge sources into stored vectors.
//
// A Pipeline chunks a file, Q&A pair or article, embeds every chunk in one
// ordered batch and upserts the result into the workspace collection under
// ids derived from the source id. The whole sequence runs synchronously in
// the caller; asynchronous dispatch is the orchestrator's job.
package ingestion
