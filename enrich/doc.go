// Package enrich turns parsed documents into enriched documents.
//
// A Pipeline runs four stages strictly in order: metadata normalization,
// keyword extraction, topic classification and summarization. The first two
// are deterministic functions of the parsed content. The last two call an
// ai.Generator and retry provider failures with exponential backoff.
//
// Enrichment is all-or-nothing. Any stage failure aborts the run and no
// document is returned, so callers never persist a half-enriched document.
package enrich
