package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/indexdb/blobstore"
)

// CurrentName is the pointer blob that DDBCommitStore serves from DynamoDB.
// Named pointers below it ("CURRENT/<name>") are served the same way, each
// with its own version history.
const CurrentName = "CURRENT"

func isPointer(name string) bool {
	return name == CurrentName || strings.HasPrefix(name, CurrentName+"/")
}

// DDBCommitStore implements blobstore.BlobStore backed by S3 with DynamoDB
// for atomic updates of the CURRENT pointer. This makes concurrent
// publishers safe: two writers racing to publish the same version cannot
// both succeed.
//
// Every blob except the pointers lives in S3. Writing a pointer appends a new
// version row with a conditional put; reading it returns the newest row.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 prefix/path, followed by
//     "#<name>" for a named pointer
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name indexdb-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string // S3 bucket/prefix used as partition key
}

var _ blobstore.BlobStore = (*DDBCommitStore)(nil)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// ErrConcurrentModification is returned when a concurrent write is detected.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// NewDDBCommitStore creates a new S3+DynamoDB commit store.
// An empty baseURI defaults to "s3://bucket/prefix" of s3Store.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	if baseURI == "" {
		baseURI = fmt.Sprintf("s3://%s/%s", s3Store.bucket, s3Store.prefix)
	}
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// partition returns the partition key holding the history of pointer name.
func (s *DDBCommitStore) partition(name string) string {
	if name == CurrentName {
		return s.baseURI
	}
	return s.baseURI + "#" + strings.TrimPrefix(name, CurrentName+"/")
}

// Open opens a blob for reading. Pointers are read from DynamoDB.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if isPointer(name) {
		version, target, err := s.latest(ctx, s.partition(name))
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return blobstore.NewBytesBlob([]byte(target)), nil
	}
	return s.s3Store.Open(ctx, name)
}

// Put writes a blob. Pointers are committed with a DynamoDB conditional write.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if isPointer(name) {
		return s.commit(ctx, s.partition(name), string(data))
	}
	return s.s3Store.Put(ctx, name, data)
}

// Create creates a writable blob in S3.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if isPointer(name) {
		return nil, fmt.Errorf("s3: %s must be written with Put", name)
	}
	return s.s3Store.Create(ctx, name)
}

// Delete deletes a blob from S3. The commit history of pointers is kept.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	if isPointer(name) {
		return nil
	}
	return s.s3Store.Delete(ctx, name)
}

// List lists blobs with prefix.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// Version returns the latest committed version of the pointer called name,
// 0 if none.
func (s *DDBCommitStore) Version(ctx context.Context, name string) (uint64, error) {
	if !isPointer(name) {
		return 0, fmt.Errorf("s3: %s is not a pointer", name)
	}
	v, _, err := s.latest(ctx, s.partition(name))
	return v, err
}

func (s *DDBCommitStore) latest(ctx context.Context, partition string) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: partition},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commits: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in DynamoDB")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid target attribute in DynamoDB")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, targetAttr.Value, nil
}

func (s *DDBCommitStore) commit(ctx context.Context, partition, target string) error {
	current, _, err := s.latest(ctx, partition)
	if err != nil {
		return err
	}

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: partition},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"target":   &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version: %w", err)
	}
	return nil
}
