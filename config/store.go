package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/indexdb/blobstore"
	minioblob "github.com/hupe1980/indexdb/blobstore/minio"
	s3blob "github.com/hupe1980/indexdb/blobstore/s3"
)

// OpenStore builds the blob store described by s. Compression is not applied
// here; publishers wrap the archive namespace themselves so that pointer
// blobs stay readable.
func OpenStore(ctx context.Context, s StoreConfig) (blobstore.BlobStore, error) {
	switch s.Kind {
	case "local":
		if err := os.MkdirAll(s.Root, 0o755); err != nil {
			return nil, fmt.Errorf("config: create store root: %w", err)
		}
		return blobstore.NewLocalStore(s.Root), nil
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "s3":
		return openS3(ctx, s)
	case "minio":
		client, err := miniogo.New(s.Endpoint, &miniogo.Options{
			Creds:  miniocreds.NewStaticV4(s.AccessKey, s.SecretKey, ""),
			Secure: !s.Insecure,
			Region: s.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("config: minio client: %w", err)
		}
		return minioblob.NewStore(client, s.Bucket, s.Prefix), nil
	default:
		return nil, fmt.Errorf("config: unknown store kind %q", s.Kind)
	}
}

func openS3(ctx context.Context, s StoreConfig) (blobstore.BlobStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(s.Region))
	}
	if s.AccessKey != "" && s.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("config: load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})
	store := s3blob.NewStore(client, s.Bucket, s.Prefix)
	if s.CommitTable == "" {
		return store, nil
	}
	return s3blob.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), s.CommitTable, ""), nil
}
