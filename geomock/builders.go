package geomock

import (
	"fmt"
	"sync/atomic"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

// RecordOption is a functional option for configuring raw records during building.
type RecordOption func(*ddbgeo.RawRecord)

// NewRecord creates a raw record with the given options applied, in order.
func NewRecord(opts ...RecordOption) ddbgeo.RawRecord {
	rec := ddbgeo.RawRecord{}
	for _, opt := range opts {
		opt(&rec)
	}
	return rec
}

// WithField appends a field, or replaces the value of an existing one.
func WithField(name, value string) RecordOption {
	return func(rec *ddbgeo.RawRecord) {
		for i, field := range rec.Fields {
			if field == name {
				rec.Values[i] = value
				return
			}
		}
		rec.Fields = append(rec.Fields, name)
		rec.Values = append(rec.Values, value)
	}
}

// WithCoordinates sets the latitude and longitude fields.
func WithCoordinates(latitude, longitude string) RecordOption {
	return func(rec *ddbgeo.RawRecord) {
		WithField(ddbgeo.FieldLatitude, latitude)(rec)
		WithField(ddbgeo.FieldLongitude, longitude)(rec)
	}
}

// WithLine sets the input line number.
func WithLine(line int) RecordOption {
	return func(rec *ddbgeo.RawRecord) {
		rec.Line = line
	}
}

// SequentialIDs returns a generator of range keys "<prefix>-1", "<prefix>-2", ...
// It is safe for concurrent use.
func SequentialIDs(prefix string) ddbgeo.IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// CountingIDs wraps next and counts its calls in calls.
func CountingIDs(next ddbgeo.IDGenerator, calls *atomic.Int64) ddbgeo.IDGenerator {
	return func() string {
		calls.Add(1)
		return next()
	}
}
