// Package storage groups the local persistence layer for monthly
// market-data files.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────┐
//	│  Collector  │────▶│   Monthly   │────▶│   Parquet   │
//	│   Records   │     │   Writer    │     │    Files    │
//	└─────────────┘     └─────────────┘     └─────────────┘
//	                           │
//	                           ▼
//	                    ┌─────────────┐
//	                    │    Paths    │
//	                    │  Resolver   │
//	                    └─────────────┘
//
// The layer provides:
//   - One parquet file per (ticker, exchange, year, month) partition
//   - Merge-append writes with last-write-wins deduplication by timestamp
//   - Atomic file replacement so readers never observe partial content
//   - A shared path scheme for the local tree and the remote key space
//
// Subpackages: paths (partition layout), parquet (columnar codec),
// monthly (merge-append writer).
package storage
