package s3

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/indexdb/internal/hash"
)

// UploadConfig configures the S3 uploader.
type UploadConfig struct {
	// PartSize is the minimum part size for multipart uploads.
	// Default: 8MB (larger than SDK default of 5MB for better throughput)
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5 (matches SDK default)
	Concurrency int

	// EnableChecksum enables CRC32C integrity validation.
	// Default: true
	EnableChecksum bool

	// LeavePartsOnError keeps the parts of a failed multipart upload
	// instead of aborting it.
	// Default: false
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:          8 * 1024 * 1024,
		Concurrency:       5,
		EnableChecksum:    true,
		LeavePartsOnError: false,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// streamingWritableBlob pipes writes into a background multipart upload.
type streamingWritableBlob struct {
	pw *io.PipeWriter
	pr *io.PipeReader

	done     chan error
	cancel   context.CancelFunc
	closed   atomic.Bool
	closeErr error
	closeMu  sync.Mutex
}

func newStreamingWritableBlob(
	ctx context.Context,
	client Client,
	uploader *manager.Uploader,
	bucket, key string,
	enableChecksum bool,
) *streamingWritableBlob {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)

	b := &streamingWritableBlob{
		pw:     pw,
		pr:     pr,
		done:   make(chan error, 1),
		cancel: cancel,
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if enableChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	go func() {
		_, err := uploader.Upload(ctx, input)
		_ = pr.CloseWithError(err)
		b.done <- err
	}()

	return b
}

func (b *streamingWritableBlob) Write(p []byte) (int, error) {
	if b.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return b.pw.Write(p)
}

// Close completes the upload and waits for it.
func (b *streamingWritableBlob) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if !b.closed.CompareAndSwap(false, true) {
		return b.closeErr
	}
	defer b.cancel()

	if err := b.pw.Close(); err != nil {
		b.closeErr = err
		return err
	}
	b.closeErr = <-b.done
	return b.closeErr
}

// Abort cancels the upload. The uploader aborts any multipart upload it
// started unless LeavePartsOnError is set.
func (b *streamingWritableBlob) Abort() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()
	_ = b.pw.CloseWithError(context.Canceled)
	<-b.done
	return nil
}

// Sync is a no-op for S3 uploads; data is only committed on Close.
func (b *streamingWritableBlob) Sync() error {
	return nil
}

// putObject uploads a small blob in one request, optionally with a CRC32C
// checksum S3 verifies on receipt.
func putObject(ctx context.Context, client Client, bucket, key string, data []byte, checksum bool) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if checksum {
		input.ChecksumCRC32C = aws.String(hash.CRC32CBase64(data))
	}
	_, err := client.PutObject(ctx, input)
	return err
}
