package upload

import (
	"context"
	"time"

	"github.com/quantfold/tickvault/internal/logging"
)

// UploadWithRetry performs up to maxAttempts upload attempts.
//
// On a transient failure it waits baseDelay * 2^(attempt-1) before the next
// attempt. A permanent failure stops immediately. The wait honors context
// cancellation. Returns the last result and the number of attempts made.
func UploadWithRetry(ctx context.Context, up Uploader, localPath, remoteKey string, maxAttempts int, baseDelay time.Duration) (UploadResult, int) {
	log := logging.Component("upload-retry")

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var last UploadResult
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			log.Debug("retrying upload",
				"attempt", attempt,
				"backoff", delay,
				"key", remoteKey,
			)

			select {
			case <-ctx.Done():
				last.Err = ctx.Err()
				return last, attempt - 1
			case <-time.After(delay):
			}

			delay *= 2
		}

		last = up.Upload(ctx, localPath, remoteKey)
		if last.Success {
			return last, attempt
		}

		if last.ErrKind == ErrKindPermanent {
			return last, attempt
		}
	}

	return last, maxAttempts
}
