package ddbgeo

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// FieldLatitude is the required input column holding the latitude in degrees.
	FieldLatitude = "latitude"
	// FieldLongitude is the required input column holding the longitude in degrees.
	FieldLongitude = "longitude"
)

var (
	// ErrMissingColumn is returned when the input lacks a latitude or longitude column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrInvalidCoordinate is wrapped by a ParseError when a coordinate is not a finite number.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// RawRecord is a single input row: an ordered mapping from field name to the
// field's text. Records are read once and never modified.
type RawRecord struct {
	Line   int      // 1-based line number in the input, 0 if unknown
	Fields []string // field names, in column order
	Values []string // field values, aligned with Fields
}

// NewRawRecord builds a record from alternating name, value pairs. It is
// mostly useful in tests and examples.
//
//	rec := ddbgeo.NewRawRecord("latitude", "37.7749", "longitude", "-122.4194")
func NewRawRecord(pairs ...string) RawRecord {
	rec := RawRecord{}
	for i := 0; i+1 < len(pairs); i += 2 {
		rec.Fields = append(rec.Fields, pairs[i])
		rec.Values = append(rec.Values, pairs[i+1])
	}
	return rec
}

// Get returns the value of the named field and whether it is present.
func (r RawRecord) Get(name string) (string, bool) {
	for i, field := range r.Fields {
		if field == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return "", false
}

// Len returns the number of fields in the record.
func (r RawRecord) Len() int {
	return len(r.Fields)
}

// ParseError reports a record whose coordinates could not be parsed.
type ParseError struct {
	Line  int    // input line of the record, 0 if unknown
	Index int    // position of the record in the input sequence
	Field string // offending field
	Value string // offending text
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: cannot parse %s %q: %v", e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("record %d: cannot parse %s %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Attribute is a single named attribute of an output item.
type Attribute struct {
	Name  string
	Value types.AttributeValue
}

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// TransformedRecord is the output counterpart of a RawRecord. Attributes
// holds the full item in output order; the remaining fields are typed views
// of the computed attributes.
type TransformedRecord struct {
	Attributes []Attribute
	HashKey    HashKey
	RangeKey   string
	Geohash    GeoCellID
	GeoJSON    string
	Latitude   float64
	Longitude  float64
}

// Item returns the record as a DynamoDB item.
func (r TransformedRecord) Item() Item {
	item := make(Item, len(r.Attributes))
	for _, attr := range r.Attributes {
		item[attr.Name] = attr.Value
	}
	return item
}

// Attribute returns the named attribute and whether it is present.
func (r TransformedRecord) Attribute(name string) (types.AttributeValue, bool) {
	for _, attr := range r.Attributes {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}
