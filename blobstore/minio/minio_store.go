package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/indexdb/blobstore"
	"github.com/minio/minio-go/v7"
)

// Store implements blobstore.BlobStore for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore creates a new MinIO blob store.
// rootPrefix is prepended to all keys (e.g. "indexes/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open stats the object to learn its size.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &minioBlob{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   info.Size,
	}, nil
}

// Put writes a blob atomically.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		SendContentMd5: true,
	})
	return err
}

// Create creates a new blob for streaming writes.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)

	blob := &minioWritableBlob{
		pw:     pw,
		done:   make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		blob.done <- err
	}()

	return blob, nil
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns all blob names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := strings.TrimSuffix(s.prefix, "/")

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, root)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	slices.Sort(names)
	return names, nil
}

type minioBlob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *minioBlob) Size() int64 {
	return b.size
}

func (b *minioBlob) get(ctx context.Context, off, end int64) (*minio.Object, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}

func (b *minioBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= b.size {
		return 0, io.EOF
	}
	end := min(off+int64(len(p)), b.size) - 1
	obj, err := b.get(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	want := int(end - off + 1)
	n, err := io.ReadFull(obj, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *minioBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("minio: invalid range %d+%d", off, length)
	}
	if off >= b.size || length == 0 {
		return blobstore.NopReadCloser(strings.NewReader("")), nil
	}
	return b.get(ctx, off, min(off+length, b.size)-1)
}

func (b *minioBlob) Close() error {
	return nil
}

type minioWritableBlob struct {
	pw       *io.PipeWriter
	done     chan error
	cancel   context.CancelFunc
	finished atomic.Bool
}

func (b *minioWritableBlob) Write(p []byte) (int, error) {
	if b.finished.Load() {
		return 0, io.ErrClosedPipe
	}
	return b.pw.Write(p)
}

func (b *minioWritableBlob) Close() error {
	if !b.finished.CompareAndSwap(false, true) {
		return errors.New("minio: blob already closed")
	}
	defer b.cancel()
	if err := b.pw.Close(); err != nil {
		return err
	}
	return <-b.done
}

// Abort cancels the upload; nothing is stored.
func (b *minioWritableBlob) Abort() error {
	if !b.finished.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()
	_ = b.pw.CloseWithError(errors.New("upload aborted"))
	<-b.done
	return nil
}

func (b *minioWritableBlob) Sync() error {
	return nil
}
