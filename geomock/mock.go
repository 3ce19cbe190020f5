package geomock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

type DynamoDBAPICall[T, U any] = func(context.Context, *T, ...func(*dynamodb.Options)) (*U, error)

type S3APICall[T, U any] = func(context.Context, *T, ...func(*s3.Options)) (*U, error)

// MockClient is a simple expectation-based mock for DynamoDB operations.
// Users can set expectations for specific operations without needing integration.
type MockClient struct {
	PutFunc            DynamoDBAPICall[dynamodb.PutItemInput, dynamodb.PutItemOutput]
	BatchWriteItemFunc DynamoDBAPICall[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput]
	CreateTableFunc    DynamoDBAPICall[dynamodb.CreateTableInput, dynamodb.CreateTableOutput]
	DescribeTableFunc  DynamoDBAPICall[dynamodb.DescribeTableInput, dynamodb.DescribeTableOutput]
}

// Ensure MockClient implements ddbgeo.DynamoDBClient
var _ ddbgeo.DynamoDBClient = (*MockClient)(nil)

// NewMockClient creates a new mock DynamoDB client that fails the test on
// any call without an expectation.
func NewMockClient(t *testing.T) *MockClient {
	return &MockClient{
		PutFunc:            defaultFunc[dynamodb.PutItemInput, dynamodb.PutItemOutput](t),
		BatchWriteItemFunc: defaultFunc[dynamodb.BatchWriteItemInput, dynamodb.BatchWriteItemOutput](t),
		CreateTableFunc:    defaultFunc[dynamodb.CreateTableInput, dynamodb.CreateTableOutput](t),
		DescribeTableFunc:  defaultFunc[dynamodb.DescribeTableInput, dynamodb.DescribeTableOutput](t),
	}
}

func defaultFunc[T, U any](t *testing.T) DynamoDBAPICall[T, U] {
	return func(ctx context.Context, params *T, optFns ...func(*dynamodb.Options)) (*U, error) {
		t.Fatal("unexpected call")
		return nil, nil
	}
}

// PutItem stores an item in the mock table.
func (m *MockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.PutFunc(ctx, params, optFns...)
}

// BatchWriteItem processes batch write operations.
func (m *MockClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return m.BatchWriteItemFunc(ctx, params, optFns...)
}

// CreateTable creates a mock table.
func (m *MockClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return m.CreateTableFunc(ctx, params, optFns...)
}

// DescribeTable describes a mock table.
func (m *MockClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return m.DescribeTableFunc(ctx, params, optFns...)
}

// MockS3 is an expectation-based mock for the S3 object operations used by
// the pipeline.
type MockS3 struct {
	GetObjectFunc S3APICall[s3.GetObjectInput, s3.GetObjectOutput]
	PutObjectFunc S3APICall[s3.PutObjectInput, s3.PutObjectOutput]
}

// NewMockS3 creates a new mock S3 client that fails the test on any call
// without an expectation.
func NewMockS3(t *testing.T) *MockS3 {
	return &MockS3{
		GetObjectFunc: defaultS3Func[s3.GetObjectInput, s3.GetObjectOutput](t),
		PutObjectFunc: defaultS3Func[s3.PutObjectInput, s3.PutObjectOutput](t),
	}
}

func defaultS3Func[T, U any](t *testing.T) S3APICall[T, U] {
	return func(ctx context.Context, params *T, optFns ...func(*s3.Options)) (*U, error) {
		t.Fatal("unexpected call")
		return nil, nil
	}
}

// GetObject retrieves an object from the mock bucket.
func (m *MockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.GetObjectFunc(ctx, params, optFns...)
}

// PutObject stores an object in the mock bucket.
func (m *MockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.PutObjectFunc(ctx, params, optFns...)
}
