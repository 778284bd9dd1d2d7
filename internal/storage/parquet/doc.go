// Package parquet implements Parquet file reading and writing for OHLCV records.
//
// The package provides:
//   - RecordWriter/RecordReader for monthly record files
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
//   - Type conversion between market records and Parquet rows
package parquet
