package s3

import (
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/indexdb/blobstore"
)

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

var _ blobstore.BlobStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithUploadConfig overrides DefaultUploadConfig.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(s *Store) {
		s.upload = cfg
	}
}

// NewStore creates a new S3 blob store.
// rootPrefix is prepended to all keys (e.g. "indexes/").
func NewStore(client Client, bucket, rootPrefix string, optFns ...Option) *Store {
	s := &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		upload: DefaultUploadConfig(),
	}
	for _, fn := range optFns {
		fn(s)
	}
	s.uploader = newUploader(client, s.upload)
	return s
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Prefix returns the root prefix.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Create starts a streaming upload. The object appears when the blob is closed.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return newStreamingWritableBlob(ctx, s.client, s.uploader, s.bucket, s.key(name), s.upload.EnableChecksum), nil
}

// Put uploads data in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return putObject(ctx, s.client, s.bucket, s.key(name), data, s.upload.EnableChecksum)
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
