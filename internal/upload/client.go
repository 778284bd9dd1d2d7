package upload

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/quantfold/tickvault/internal/config"
	"github.com/quantfold/tickvault/internal/errors"
)

// ErrKind classifies an upload failure for retry decisions.
type ErrKind int

const (
	// ErrKindNone means the upload succeeded.
	ErrKindNone ErrKind = iota

	// ErrKindTransient marks retryable infrastructure faults:
	// timeouts, 5xx responses, throttling.
	ErrKindTransient

	// ErrKindPermanent marks faults no retry can fix: bad credentials,
	// access denied, invalid bucket or key.
	ErrKindPermanent
)

// String returns the string representation of the error kind.
func (k ErrKind) String() string {
	switch k {
	case ErrKindNone:
		return "none"
	case ErrKindTransient:
		return "transient"
	case ErrKindPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// UploadResult reports a single upload attempt.
type UploadResult struct {
	Success          bool
	BytesTransferred int64
	ErrKind          ErrKind
	Err              error
}

// Uploader performs a single upload attempt for one local file.
// Implementations never retry internally; retry policy lives in
// UploadWithRetry. The local file is read-only to the uploader.
type Uploader interface {
	Upload(ctx context.Context, localPath, remoteKey string) UploadResult
}

// S3Client uploads files to an S3-compatible object store.
type S3Client struct {
	client *s3.Client
	bucket string
}

var _ Uploader = (*S3Client)(nil)

// NewS3Client creates an uploader for the configured remote store.
// An explicit endpoint URL points it at Cloudflare R2 or any other
// S3-compatible service.
func NewS3Client(ctx context.Context, cfg config.RemoteConfig) (*S3Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})

	return &S3Client{client: client, bucket: cfg.Bucket}, nil
}

// Upload performs one PutObject attempt. Each successful re-upload
// overwrites the remote object under the same key.
func (c *S3Client) Upload(ctx context.Context, localPath, remoteKey string) UploadResult {
	f, err := os.Open(localPath)
	if err != nil {
		// A missing or unreadable local file cannot be fixed by retrying.
		return UploadResult{
			ErrKind: ErrKindPermanent,
			Err:     errors.Wrapf(errors.ErrPermanentUpload, "open %s: %v", localPath, err),
		}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return UploadResult{
			ErrKind: ErrKindPermanent,
			Err:     errors.Wrapf(errors.ErrPermanentUpload, "stat %s: %v", localPath, err),
		}
	}
	size := stat.Size()

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(remoteKey),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		kind := classify(err)
		wrapped := errors.ErrTransientUpload
		if kind == ErrKindPermanent {
			wrapped = errors.ErrPermanentUpload
		}
		return UploadResult{
			ErrKind: kind,
			Err:     errors.Wrapf(wrapped, "put %s: %v", remoteKey, err),
		}
	}

	return UploadResult{
		Success:          true,
		BytesTransferred: size,
	}
}

// permanentCodes are S3 error codes that indicate a configuration or
// authorization fault. Retrying cannot succeed until an operator fixes it.
var permanentCodes = map[string]bool{
	"AccessDenied":                 true,
	"AccountProblem":               true,
	"AllAccessDisabled":            true,
	"InvalidAccessKeyId":           true,
	"SignatureDoesNotMatch":        true,
	"ExpiredToken":                 true,
	"InvalidToken":                 true,
	"NoSuchBucket":                 true,
	"InvalidBucketName":            true,
	"PermanentRedirect":            true,
	"AuthorizationHeaderMalformed": true,
}

// classify decides whether an S3 error is worth retrying.
// Unknown faults default to transient so a flaky network path is not
// mistaken for a configuration problem.
func classify(err error) ErrKind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if permanentCodes[apiErr.ErrorCode()] {
			return ErrKindPermanent
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == http.StatusTooManyRequests:
			return ErrKindTransient
		case status >= 500:
			return ErrKindTransient
		case status == http.StatusUnauthorized,
			status == http.StatusForbidden,
			status == http.StatusNotFound:
			return ErrKindPermanent
		}
	}

	return ErrKindTransient
}
