package ddbgeo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	// ErrUnprocessedItems is returned when a batch write leaves items unwritten.
	ErrUnprocessedItems = errors.New("unprocessed items")
	// ErrTableExists is returned by Table.Create when the table already exists.
	ErrTableExists = errors.New("table already exists")
)

// DynamoDBClient interface for easier testing and connection management.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ DynamoDBClient = (*dynamodb.Client)(nil)

// Loader writes transformed records directly into a table. It is meant for
// datasets small enough to load through the API instead of an S3 import.
type Loader struct {
	table       *Table
	client      DynamoDBClient
	Conditional bool // If true, each record is a conditional put instead of part of a batch.
}

// Loader returns a Loader that writes to t through client.
func (t *Table) Loader(client DynamoDBClient) *Loader {
	return &Loader{
		table:  t,
		client: client,
	}
}

// TableName returns the name of the table the loader writes to.
func (l *Loader) TableName() string {
	return l.table.TableName
}

// Load writes every record and returns how many were written. There are no
// retries: a failed request or unprocessed items abort the load.
func (l *Loader) Load(ctx context.Context, records []TransformedRecord) (int, error) {
	if l.Conditional {
		return l.put(ctx, records)
	}

	written := 0
	for i, batch := range l.table.MarshalBatch(records) {
		size := len(batch.RequestItems[l.table.TableName])

		out, err := l.client.BatchWriteItem(ctx, batch)
		if err != nil {
			return written, fmt.Errorf("failed to write batch %d: %w", i, err)
		}

		if unprocessed := len(out.UnprocessedItems[l.table.TableName]); unprocessed > 0 {
			return written + size - unprocessed, fmt.Errorf("batch %d: %w: %d", i, ErrUnprocessedItems, unprocessed)
		}

		written += size
	}

	return written, nil
}

func (l *Loader) put(ctx context.Context, records []TransformedRecord) (int, error) {
	for i, rec := range records {
		input, err := l.table.MarshalPut(rec)
		if err != nil {
			return i, fmt.Errorf("failed to marshal record %d: %w", i, err)
		}

		if _, err := l.client.PutItem(ctx, input); err != nil {
			return i, fmt.Errorf("failed to put record %s: %w", rec.RangeKey, err)
		}
	}
	return len(records), nil
}

// Create creates the table with the geo schema and waits up to timeout for
// it to become active.
func (t *Table) Create(ctx context.Context, client DynamoDBClient, timeout time.Duration) error {
	_, err := client.CreateTable(ctx, t.CreateTableInput())

	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return fmt.Errorf("%w: %s", ErrTableExists, t.TableName)
	} else if err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.TableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = 500 * time.Millisecond
		o.MaxDelay = 5 * time.Second
	})

	input := &dynamodb.DescribeTableInput{TableName: aws.String(t.TableName)}
	if err := waiter.Wait(ctx, input, timeout); err != nil {
		return fmt.Errorf("table %s did not become active: %w", t.TableName, err)
	}

	return nil
}
