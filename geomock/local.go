package geomock

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

// DefaultLocalPort is the default port for DynamoDB Local.
const DefaultLocalPort = 8000

// LocalDynamoDB represents a connection to a local DynamoDB instance.
type LocalDynamoDB struct {
	Client   *dynamodb.Client
	Endpoint string
	Port     int
}

// NewLocalClient creates a DynamoDB client configured to connect to a local
// DynamoDB instance on the given port.
func NewLocalClient(port int) *dynamodb.Client {
	endpoint := fmt.Sprintf("http://localhost:%d", port)

	cfg := aws.Config{
		Region:      "us-west-2", // DynamoDB Local ignores the region
		Credentials: aws.AnonymousCredentials{},
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// NewLocalDynamoDB creates a LocalDynamoDB instance with the specified port.
func NewLocalDynamoDB(port int) *LocalDynamoDB {
	return &LocalDynamoDB{
		Client:   NewLocalClient(port),
		Endpoint: fmt.Sprintf("http://localhost:%d", port),
		Port:     port,
	}
}

// IsAvailable checks if DynamoDB Local is running on the configured port.
func (l *LocalDynamoDB) IsAvailable(ctx context.Context) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", l.Port), 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()

	// Make sure it is actually DynamoDB
	_, err = l.Client.ListTables(ctx, &dynamodb.ListTablesInput{})
	return err == nil
}

// CreateGeoTable creates a table with the geo schema and waits for it to
// become active.
func (l *LocalDynamoDB) CreateGeoTable(ctx context.Context, tableName string) (*ddbgeo.Table, error) {
	table := ddbgeo.NewTable(tableName)
	if err := table.Create(ctx, l.Client, 30*time.Second); err != nil {
		return nil, err
	}
	return table, nil
}

// DeleteTable deletes a table and waits for it to be fully deleted.
func (l *LocalDynamoDB) DeleteTable(ctx context.Context, tableName string) error {
	input := &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}

	_, err := l.Client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableNotExistsWaiter(l.Client)
	if err := waiter.Wait(ctx, input, 30*time.Second); err != nil {
		return fmt.Errorf("table %s was not deleted: %w", tableName, err)
	}

	return nil
}

// ScanPoints reads every item of the table back as geo points.
func (l *LocalDynamoDB) ScanPoints(ctx context.Context, table *ddbgeo.Table) ([]ddbgeo.GeoPoint, error) {
	var points []ddbgeo.GeoPoint

	paginator := dynamodb.NewScanPaginator(l.Client, &dynamodb.ScanInput{
		TableName: aws.String(table.TableName),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table %s: %w", table.TableName, err)
		}

		for _, item := range page.Items {
			point, err := table.UnmarshalPoint(item)
			if err != nil {
				return nil, err
			}
			points = append(points, point)
		}
	}

	return points, nil
}

// GetFields reads the item with the given keys into out.
func (l *LocalDynamoDB) GetFields(ctx context.Context, table *ddbgeo.Table, hashKey ddbgeo.HashKey, rangeKey string, out any) error {
	key, err := attributevalue.MarshalMap(map[string]any{
		table.HashKeyAttributeName:  int64(hashKey),
		table.RangeKeyAttributeName: rangeKey,
	})
	if err != nil {
		return err
	}

	res, err := l.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table.TableName),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to get item %s: %w", rangeKey, err)
	}
	if res.Item == nil {
		return fmt.Errorf("item %s not found", rangeKey)
	}

	return attributevalue.UnmarshalMap(res.Item, out)
}
