// Package upload mirrors monthly files to the remote object store.
//
// The package separates three concerns:
//   - S3Client performs exactly one upload attempt and classifies failures
//     as transient or permanent
//   - UploadWithRetry applies bounded exponential backoff around any Uploader
//   - Driver runs whole batches off the progress ledger, isolating each
//     file's outcome
package upload
