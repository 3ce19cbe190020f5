package ddbgeo

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// MaxBatchSize is the maximum number of items allowed in a DynamoDB batch operation.
	MaxBatchSize = 25

	AttributeNameHashKey  = "hashKey"
	AttributeNameRangeKey = "rangeKey"
	AttributeNameGeohash  = "geohash"
	AttributeNameGeoJSON  = "geoJson"
)

// Table contains the geo table configuration: the attribute names written
// for every point and the name of the geohash index.
type Table struct {
	TableName             string // Main table name
	HashKeyAttributeName  string // Partition key, a truncated cell id. Default is "hashKey".
	RangeKeyAttributeName string // Sort key, a unique id per point. Default is "rangeKey".
	GeohashAttributeName  string // Full cell id. Default is "geohash".
	GeoJSONAttributeName  string // GeoJSON point. Default is "geoJson".
	GeohashIndexName      string // Global index on (hashKey, geohash). Default is "geohash-index".
}

// NewTable creates a new Table with default configuration.
func NewTable(tableName string) *Table {
	return &Table{
		TableName:             tableName,
		HashKeyAttributeName:  AttributeNameHashKey,
		RangeKeyAttributeName: AttributeNameRangeKey,
		GeohashAttributeName:  AttributeNameGeohash,
		GeoJSONAttributeName:  AttributeNameGeoJSON,
		GeohashIndexName:      "geohash-index",
	}
}

// reserved reports whether name is one of the computed attributes.
func (t *Table) reserved(name string) bool {
	switch name {
	case t.HashKeyAttributeName, t.RangeKeyAttributeName, t.GeohashAttributeName, t.GeoJSONAttributeName:
		return true
	}
	return false
}

// MarshalPut marshals the record into a put item request. The request is
// conditioned on the range key not existing yet, so a point is never
// silently overwritten.
func (t *Table) MarshalPut(rec TransformedRecord) (*dynamodb.PutItemInput, error) {
	condition := expression.AttributeNotExists(expression.Name(t.RangeKeyAttributeName))

	expr, err := expression.NewBuilder().WithCondition(condition).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	return &dynamodb.PutItemInput{
		TableName:                aws.String(t.TableName),
		Item:                     rec.Item(),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	}, nil
}

// MarshalBatch marshals the records into batch write put requests. Since there is a
// limit on how many requests can be contained in a single input, the requests are chunked
// in sizes of 25 or less.
func (t *Table) MarshalBatch(records []TransformedRecord) []*dynamodb.BatchWriteItemInput {
	var batches []*dynamodb.BatchWriteItemInput

	for i := 0; i < len(records); i += MaxBatchSize {
		end := min(i+MaxBatchSize, len(records))

		writeRequests := make([]types.WriteRequest, 0, end-i)
		for _, rec := range records[i:end] {
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: rec.Item()},
			})
		}

		batches = append(batches, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				t.TableName: writeRequests,
			},
		})
	}

	return batches
}

// CreateTableInput returns the request that creates a table with the geo
// schema: hash key (N) and range key (S) on the table, and a global index
// on hash key and geohash (both N) for cell range queries.
func (t *Table) CreateTableInput() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(t.TableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(t.HashKeyAttributeName),
				AttributeType: types.ScalarAttributeTypeN,
			},
			{
				AttributeName: aws.String(t.RangeKeyAttributeName),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String(t.GeohashAttributeName),
				AttributeType: types.ScalarAttributeTypeN,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(t.HashKeyAttributeName),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String(t.RangeKeyAttributeName),
				KeyType:       types.KeyTypeRange,
			},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(t.GeohashIndexName),
				KeySchema: []types.KeySchemaElement{
					{
						AttributeName: aws.String(t.HashKeyAttributeName),
						KeyType:       types.KeyTypeHash,
					},
					{
						AttributeName: aws.String(t.GeohashAttributeName),
						KeyType:       types.KeyTypeRange,
					},
				},
				Projection: &types.Projection{
					ProjectionType: types.ProjectionTypeAll,
				},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

// GeoPoint is a typed view of a stored point item.
type GeoPoint struct {
	HashKey   HashKey
	RangeKey  string
	Geohash   GeoCellID
	GeoJSON   string
	Latitude  float64
	Longitude float64
	Fields    map[string]any // every other attribute
}

// UnmarshalPoint extracts a GeoPoint from a DynamoDB item. Returns an error if
// any of the computed attributes or the coordinates are missing.
func (t *Table) UnmarshalPoint(item Item) (GeoPoint, error) {
	var point GeoPoint

	err := errors.Join(
		unmarshalAttribute(item, t.HashKeyAttributeName, &point.HashKey),
		unmarshalAttribute(item, t.RangeKeyAttributeName, &point.RangeKey),
		unmarshalAttribute(item, t.GeohashAttributeName, &point.Geohash),
		unmarshalAttribute(item, t.GeoJSONAttributeName, &point.GeoJSON),
		unmarshalAttribute(item, FieldLatitude, &point.Latitude),
		unmarshalAttribute(item, FieldLongitude, &point.Longitude),
	)
	if err != nil {
		return point, err
	}

	rest := make(Item, len(item))
	for name, value := range item {
		if !t.reserved(name) && name != FieldLatitude && name != FieldLongitude {
			rest[name] = value
		}
	}

	if err := attributevalue.UnmarshalMap(rest, &point.Fields); err != nil {
		return point, fmt.Errorf("failed to unmarshal fields: %w", err)
	}

	return point, nil
}

func unmarshalAttribute(item Item, name string, out any) error {
	value, ok := item[name]
	if !ok {
		return fmt.Errorf("%s attribute not found", name)
	}
	if err := attributevalue.Unmarshal(value, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}
