// Package monthly implements the merge-append storage discipline for
// per-month record files.
//
// A monthly file holds one (ticker, exchange, year, month) partition as a
// timestamp-sorted, deduplicated parquet file. Repeated overlapping
// ingestions converge to the same content: the writer reads the existing
// file, merges with last-write-wins semantics, and atomically replaces it,
// so a partition is never observable in a half-written state.
package monthly
