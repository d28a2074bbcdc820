// Package reenrich re-runs enrichment over documents already in the store,
// for example after switching to a different model.
//
// Documents are processed in batches in source-path order. After every
// batch a checkpoint records the last completed path, so an interrupted run
// can resume where it stopped. Source files are not read again; the stored
// extraction is enriched anew.
package reenrich
