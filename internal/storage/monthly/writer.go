package monthly

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/logging"
	"github.com/quantfold/tickvault/internal/market"
	"github.com/quantfold/tickvault/internal/storage/paths"
	"github.com/quantfold/tickvault/internal/storage/parquet"
)

// WriteResult reports the outcome of one monthly write.
type WriteResult struct {
	// Key is the partition the result belongs to.
	Key market.MonthKey

	// TotalRecords is the record count in the file after the write.
	TotalRecords int

	// RecordsAdded is the number of new unique timestamps introduced by
	// this write. Replacements of existing timestamps do not count.
	RecordsAdded int

	// FileChanged is true iff the on-disk record set differs from the
	// pre-write set. It drives whether a (re)upload is required.
	FileChanged bool

	// Path is the file's canonical local path.
	Path string

	// FileSize is the file size in bytes after the write, 0 if no file exists.
	FileSize int64

	// LastTimestampMs is the newest timestamp in the file, 0 if empty.
	LastTimestampMs int64
}

// Writer persists per-month record files using merge-append semantics.
//
// A write reads the existing monthly file (if any), merges in the new
// records with last-write-wins deduplication by timestamp, sorts, and
// atomically replaces the file. Write access per MonthKey is serialized
// internally; writes to distinct months may run concurrently.
type Writer struct {
	resolver *paths.Resolver
	opts     parquet.Options
	log      *slog.Logger

	mu    sync.Mutex
	locks map[market.MonthKey]*sync.Mutex
}

// NewWriter creates a monthly writer over the given path resolver.
func NewWriter(resolver *paths.Resolver, opts parquet.Options) *Writer {
	return &Writer{
		resolver: resolver,
		opts:     opts,
		log:      logging.Component("monthly-writer"),
		locks:    make(map[market.MonthKey]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing writes for one partition.
func (w *Writer) keyLock(key market.MonthKey) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.locks[key]
	if !ok {
		l = &sync.Mutex{}
		w.locks[key] = l
	}
	return l
}

// Write merges newRecords into the monthly file for key and atomically
// replaces it. An empty newRecords is a no-op that still reports the
// unchanged existing state. Zero total records never persists an empty file.
func (w *Writer) Write(ctx context.Context, key market.MonthKey, newRecords []market.Record) (WriteResult, error) {
	localPath, _, err := w.resolver.Resolve(key)
	if err != nil {
		return WriteResult{}, err
	}

	for i := range newRecords {
		r := &newRecords[i]
		if err := r.Validate(); err != nil {
			return WriteResult{}, err
		}
		if r.Ticker != key.Ticker || r.Exchange != key.Exchange {
			return WriteResult{}, errors.Wrapf(errors.ErrMixedBatch,
				"record %s/%s does not belong to partition %s", r.Ticker, r.Exchange, key)
		}
	}

	// The read-merge-replace sequence is not safe under concurrent writers
	// on the same partition. Hold the per-key lock for the whole sequence.
	lock := w.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}

	existing, err := w.readExisting(localPath)
	if err != nil {
		return WriteResult{}, err
	}

	merged, added := merge(existing, newRecords)

	result := WriteResult{
		Key:          key,
		TotalRecords: len(merged),
		RecordsAdded: added,
		Path:         localPath,
	}
	if n := len(merged); n > 0 {
		result.LastTimestampMs = merged[n-1].TimestampMs
	}

	if !changed(existing, merged) {
		if st, err := os.Stat(localPath); err == nil {
			result.FileSize = st.Size()
		}
		return result, nil
	}
	result.FileChanged = true

	if err := w.replaceFile(localPath, merged); err != nil {
		return WriteResult{}, err
	}

	st, err := os.Stat(localPath)
	if err != nil {
		return WriteResult{}, fmt.Errorf("stat %s: %w", localPath, err)
	}
	result.FileSize = st.Size()

	w.log.Info("monthly file written",
		"key", key.String(),
		"total", result.TotalRecords,
		"added", result.RecordsAdded,
		"bytes", result.FileSize,
	)

	return result, nil
}

// WriteBatch splits a possibly multi-month batch and writes each month,
// ascending. The batch must be homogeneous in ticker/exchange.
func (w *Writer) WriteBatch(ctx context.Context, records []market.Record) ([]WriteResult, error) {
	groups, err := GroupByMonth(records)
	if err != nil {
		return nil, err
	}

	results := make([]WriteResult, 0, len(groups))
	for _, key := range SortedKeys(groups) {
		res, err := w.Write(ctx, key, groups[key])
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	return results, nil
}

// readExisting loads the current record set, or nil if no file exists.
func (w *Writer) readExisting(path string) ([]market.Record, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	r, err := parquet.NewRecordReader(path)
	if err != nil {
		return nil, fmt.Errorf("open existing file: %w", err)
	}
	defer r.Close()

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read existing file: %w", err)
	}
	return records, nil
}

// replaceFile writes records to a temporary file in the target directory and
// renames it over the destination. A reader always observes either the
// complete old content or the complete new content.
func (w *Writer) replaceFile(path string, records []market.Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	pw, err := parquet.NewRecordWriter(tmpPath, w.opts)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := pw.Write(records); err != nil {
		pw.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := pw.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// merge unions existing and incoming records, deduplicating by timestamp.
// The newly supplied record wins on a shared timestamp, modeling a re-fetch
// of a window with corrected values. Returns the sorted result and the
// count of timestamps not present before.
func merge(existing, incoming []market.Record) ([]market.Record, int) {
	byTs := make(map[int64]market.Record, len(existing)+len(incoming))
	for _, r := range existing {
		byTs[r.TimestampMs] = r
	}

	added := 0
	for _, r := range incoming {
		if _, ok := byTs[r.TimestampMs]; !ok {
			added++
		}
		byTs[r.TimestampMs] = r
	}

	merged := make([]market.Record, 0, len(byTs))
	for _, r := range byTs {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TimestampMs < merged[j].TimestampMs
	})

	return merged, added
}

// changed reports whether the merged set differs from the existing set by
// count or content. existing is sorted on disk; merged is sorted by merge.
func changed(existing, merged []market.Record) bool {
	if len(existing) != len(merged) {
		return true
	}
	for i := range existing {
		if existing[i] != merged[i] {
			return true
		}
	}
	return false
}
