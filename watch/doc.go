// Package watch keeps the document store in sync with a directory tree.
//
// A Service watches a root directory recursively with fsnotify. Every
// admitted path is tracked by a small state machine:
//
//	Unseen -> Pending -> Processing -> Indexed
//	Processing -> Failed -> Pending   (retryable failure)
//	Indexed -> Pending                (modified again)
//	Indexed -> Removed                (deleted or renamed away)
//
// Bursts of events for one path are coalesced by a debounce timer and the
// last observed state wins. Different paths are processed in parallel; one
// path is never processed by two goroutines at once.
package watch
