package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/indexdb/blobstore"
)

// Client is the subset of the S3 API used by Store. *s3.Client implements it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// s3Blob implements blobstore.Blob with ranged GETs.
type s3Blob struct {
	client Client
	bucket string
	key    string
	size   int64
}

func (b *s3Blob) Close() error {
	return nil
}

func (b *s3Blob) Size() int64 {
	return b.size
}

func (b *s3Blob) get(ctx context.Context, off, end int64) (io.ReadCloser, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}

// ReadAt reads len(p) bytes starting at offset off.
func (b *s3Blob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= b.size {
		return 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	end := min(off+int64(len(p)), b.size) - 1
	body, err := b.get(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	want := int(end - off + 1)
	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange returns a reader for a range of bytes.
func (b *s3Blob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("s3: invalid range %d+%d", off, length)
	}
	if off >= b.size || length == 0 {
		return blobstore.NopReadCloser(strings.NewReader("")), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.get(ctx, off, min(off+length, b.size)-1)
}

// listObjects returns the keys under fullPrefix relative to rootPrefix.
func listObjects(ctx context.Context, client Client, bucket, fullPrefix, rootPrefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(fullPrefix),
	})

	root := strings.TrimSuffix(rootPrefix, "/")
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			rel := aws.ToString(obj.Key)
			if root != "" {
				rel = strings.TrimPrefix(rel, root)
				rel = strings.TrimPrefix(rel, "/")
			}
			keys = append(keys, rel)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// openBlob heads key to learn its size.
func openBlob(ctx context.Context, client Client, bucket, key string) (*s3Blob, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &s3Blob{
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}
