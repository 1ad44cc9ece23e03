// Package retrieval answers questions from stored workspace knowledge.
//
// An Engine embeds the question, fetches the nearest chunks of the
// workspace collection, drops every candidate farther than the relevance
// threshold and hands the remaining context to an answer Backend. When
// nothing relevant is found it returns FallbackAnswer with no sources,
// which callers use as the signal to escalate to a human.
//
// Answer never returns an error. Failures are reported to the user as
// answer text with an empty source list.
package retrieval
