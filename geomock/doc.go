// Package geomock provides testing utilities for the ddbgeo library and the
// csv2ddbgeo pipeline.
//
// This package includes:
//   - Expectation-based mock DynamoDB and S3 clients for unit testing
//   - Local DynamoDB integration utilities
//   - Raw record builders and deterministic range key generators
//
// # Mock Clients
//
// The MockClient and MockS3 types provide expectation-based mocks where you
// set a function for each operation you expect to be called. Any other call
// fails the test:
//
//	mock := geomock.NewMockClient(t)
//
//	mock.BatchWriteItemFunc = func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
//		return &dynamodb.BatchWriteItemOutput{}, nil
//	}
//
//	n, err := ddbgeo.NewTable("points").Loader(mock).Load(ctx, records)
//
// # Record Builders
//
//	rec := geomock.NewRecord(
//		geomock.WithCoordinates("37.7749", "-122.4194"),
//		geomock.WithField("city", "SF"),
//	)
//
// # Local DynamoDB
//
// Integration tests run against DynamoDB Local and are skipped when it is
// not reachable:
//
//	geomock.WithGeoTable(t, geomock.DefaultLocalPort, func(local *geomock.LocalDynamoDB, table *ddbgeo.Table) {
//		n, err := table.Loader(local.Client).Load(ctx, records)
//		...
//	})
//
// For fluent assertions on transformed records, see the assert subpackage.
package geomock
