package upload

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfold/tickvault/internal/errors"
	"github.com/quantfold/tickvault/internal/ledger"
	"github.com/quantfold/tickvault/internal/logging"
	"github.com/quantfold/tickvault/internal/market"
	"github.com/quantfold/tickvault/internal/storage/paths"
)

// DriverOptions configures the batch upload driver.
type DriverOptions struct {
	// MaxAttempts is the per-file attempt limit.
	MaxAttempts int

	// BaseDelay is the first backoff delay, doubled per attempt.
	BaseDelay time.Duration

	// Workers bounds concurrent uploads across distinct months.
	Workers int

	// PerFileTimeout caps one file's upload including retries.
	// Zero means no per-file timeout.
	PerFileTimeout time.Duration

	// MinMonthAge skips months younger than this many months, so the
	// still-accumulating current month is not mirrored on every run.
	// Zero uploads everything.
	MinMonthAge int
}

// FileReport is the outcome for one partition in a batch run.
type FileReport struct {
	Key      market.MonthKey
	Success  bool
	Attempts int
	Bytes    int64
	Status   ledger.Status
	Err      string
}

// BatchReport aggregates one batch run. Every processed partition appears
// exactly once so callers can decide on alerting per file.
type BatchReport struct {
	Results   []FileReport
	Succeeded int
	Failed    int
}

// Driver mirrors pending monthly files to the remote store.
//
// One run queries the ledger for partitions needing (re)upload, uploads each
// with retry over a bounded worker pool, and records the outcome back to the
// ledger. A failure on one partition never aborts the rest of the batch.
type Driver struct {
	ledger   ledger.Ledger
	uploader Uploader
	resolver *paths.Resolver
	opts     DriverOptions
	log      *slog.Logger

	// now is stubbed in tests of the month-age gate.
	now func() time.Time
}

// NewDriver creates a batch upload driver.
func NewDriver(l ledger.Ledger, up Uploader, resolver *paths.Resolver, opts DriverOptions) *Driver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	return &Driver{
		ledger:   l,
		uploader: up,
		resolver: resolver,
		opts:     opts,
		log:      logging.Component("upload-driver"),
		now:      time.Now,
	}
}

// RunBatch uploads every pending or failed partition of the active assets.
//
// An unreachable ledger aborts the run before any upload; mid-run, each
// partition's outcome is isolated. Cancelling the context finishes the
// uploads already in flight and skips the remaining partitions.
func (d *Driver) RunBatch(ctx context.Context) (BatchReport, error) {
	keys, err := d.ledger.PendingOrFailed(ctx, true)
	if err != nil {
		return BatchReport{}, err
	}

	keys = d.filterByAge(keys)

	d.log.Info("batch upload starting", "pending", len(keys))

	var (
		mu      sync.Mutex
		results = make([]FileReport, 0, len(keys))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	for _, key := range keys {
		// Abort between files, never mid-upload.
		if gctx.Err() != nil {
			break
		}

		key := key
		g.Go(func() error {
			report := d.uploadOne(gctx, key)

			mu.Lock()
			results = append(results, report)
			mu.Unlock()

			// Per-file outcomes are isolated; never fail the group.
			return nil
		})
	}

	g.Wait()

	report := BatchReport{Results: results}
	for _, r := range results {
		if r.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	d.log.Info("batch upload finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)

	return report, nil
}

// uploadOne uploads a single partition and records the outcome.
func (d *Driver) uploadOne(ctx context.Context, key market.MonthKey) FileReport {
	report := FileReport{Key: key}

	entry, err := d.ledger.Entry(ctx, key)
	if err != nil {
		report.Status = ledger.StatusFailed
		report.Err = err.Error()
		return report
	}

	localPath := entry.LocalPath
	remoteKey := entry.RemoteKey
	if localPath == "" || remoteKey == "" {
		localPath, remoteKey, err = d.resolver.Resolve(key)
		if err != nil {
			report.Status = ledger.StatusFailed
			report.Err = err.Error()
			return report
		}
	}

	// Fingerprint the file as it is on disk right now. The writer may have
	// appended since the ledger row was last refreshed.
	stat, err := os.Stat(localPath)
	if err != nil {
		report.Status = ledger.StatusFailed
		report.Err = errors.Wrapf(errors.ErrFileNotFound, "%s", localPath).Error()
		d.recordFailure(ctx, key, entry.Upload, report.Err)
		return report
	}
	fingerprint := ledger.Fingerprint{
		SizeBytes:   stat.Size(),
		RecordCount: entry.Current.RecordCount,
	}

	uctx := ctx
	if d.opts.PerFileTimeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, d.opts.PerFileTimeout)
		defer cancel()
	}

	result, attempts := UploadWithRetry(uctx, d.uploader, localPath, remoteKey,
		d.opts.MaxAttempts, d.opts.BaseDelay)
	report.Attempts = attempts

	if result.Success {
		report.Success = true
		report.Bytes = result.BytesTransferred
		report.Status = ledger.StatusUploaded

		state := ledger.UploadState{
			Status:   ledger.StatusUploaded,
			Uploaded: fingerprint,
		}
		if err := d.ledger.UpsertState(ctx, key, state); err != nil {
			// The object is mirrored but the ledger missed it; the next run
			// re-evaluates the fingerprint and converges.
			report.Err = err.Error()
			d.log.Warn("ledger update failed after upload", "key", key.String(), "error", err)
		}

		d.log.Info("uploaded", "key", key.String(), "bytes", report.Bytes, "attempts", attempts)
		return report
	}

	report.Status = ledger.StatusFailed
	if result.Err != nil {
		report.Err = result.Err.Error()
	}
	d.recordFailure(ctx, key, entry.Upload, report.Err)

	d.log.Warn("upload failed",
		"key", key.String(),
		"attempts", attempts,
		"kind", result.ErrKind.String(),
		"error", report.Err,
	)
	return report
}

// recordFailure marks a partition failed and bumps its attempt count.
func (d *Driver) recordFailure(ctx context.Context, key market.MonthKey, prev ledger.UploadState, msg string) {
	state := ledger.UploadState{
		Status:    ledger.StatusFailed,
		Uploaded:  prev.Uploaded,
		Attempts:  prev.Attempts + 1,
		LastError: msg,
	}
	if err := d.ledger.UpsertState(ctx, key, state); err != nil {
		d.log.Warn("ledger update failed", "key", key.String(), "error", err)
	}
}

// filterByAge drops months younger than the configured minimum age.
func (d *Driver) filterByAge(keys []market.MonthKey) []market.MonthKey {
	if d.opts.MinMonthAge <= 0 {
		return keys
	}

	now := d.now().UTC()
	cutoff := now.Year()*12 + int(now.Month()) - 1 - d.opts.MinMonthAge

	filtered := keys[:0]
	for _, k := range keys {
		if k.Year*12+int(k.Month)-1 <= cutoff {
			filtered = append(filtered, k)
		}
	}
	return filtered
}
