// Package chunker turns raw knowledge into bounded, overlapping chunks.
//
// Text is split recursively on paragraph breaks, then line breaks, then
// spaces, then raw rune boundaries, until every piece fits the target
// size. Pieces are then merged greedily into chunks, carrying up to the
// configured overlap from the end of one chunk into the start of the next.
//
// Every chunk is a contiguous slice of its input and records its rune
// offset in ChunkMetadata.StartIndex, so the original text can be rebuilt
// by dropping the overlapping prefix of each chunk.
//
// Files are loaded into page-level units first (one per PDF page, one for
// DOCX and plain text). A loader failure never aborts ingestion: it yields a
// single placeholder chunk with Metadata.Error set.
package chunker
