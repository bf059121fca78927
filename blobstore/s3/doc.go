// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "indexes/")
//
//	pub, err := publish.New(store)
//	rel, err := pub.Publish(ctx, "chromium", "/tmp/chromium.iar")
//
// # Features
//
//   - Range reads, so archive directories and single entries are fetched
//     without downloading the whole archive
//   - Streaming multipart uploads with CRC32C integrity checks
//   - Automatic pagination for listing
//   - DDBCommitStore: DynamoDB conditional writes for the CURRENT pointers
//     (one history per name), which gives concurrent publishers
//     compare-and-swap semantics
package s3
