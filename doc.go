// Package ddbgeo converts geospatial point records into items for a
// geo-indexed DynamoDB table, written in the DynamoDB JSON format accepted
// by the S3 table import.
//
// # Key Concepts
//
// Every point is keyed by the S2 leaf cell that contains it:
//   - geohash: the 64-bit cell id, signed
//   - hashKey: the first few decimal digits of the cell id (partition key)
//   - rangeKey: a unique id per point (sort key)
//   - geoJson: the point as a GeoJSON string, coordinates as written in the input
//
// Truncating the cell id spreads points over a bounded set of partitions,
// while the geohash index on (hashKey, geohash) keeps cell range queries
// possible.
//
// # Basic Usage
//
//	records, err := ddbgeo.ReadRecords(csvFile)
//	if err != nil {
//	    return err
//	}
//
//	result, err := ddbgeo.NewTransformer(func(o *ddbgeo.TransformOptions) {
//	    o.HashKeyLength = 4
//	}).Transform(ctx, records)
//	if err != nil {
//	    return err
//	}
//
//	data, err := ddbgeo.Serialize(result.Records)
//
// Each line of data is a single {"Item":{...}} object:
//
//	{"Item":{"city":{"S":"SF"},"latitude":{"N":"37.7749"},"longitude":{"N":"-122.4194"},"hashKey":{"N":"..."},...}}
//
// # Keys
//
// The two key functions can be used on their own:
//
//	cell := ddbgeo.ComputeCellID(37.7749, -122.4194)
//	hashKey := ddbgeo.DeriveHashKey(cell, 4)
//
// # Loading
//
// Small datasets can be written through the API instead of an import:
//
//	table := ddbgeo.NewTable("points")
//	err := table.Create(ctx, ddb, time.Minute)
//	n, err := table.Loader(ddb).Load(ctx, result.Records)
package ddbgeo
