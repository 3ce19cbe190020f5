// Package assert provides fluent assertion utilities for testing transformed
// geo records and the DynamoDB items built from them.
//
// # Usage
//
//	import "github.com/risafletcher/CSV-to-DynamoDB-Geo/geomock/assert"
//
//	// Assert on a transformation result
//	assert.Records(t, result.Records).
//		HasCount(3).
//		HasUniqueRangeKeys().
//		HasHashKeyLength(4).
//		MatchesInput(raw)
//
//	// Assert on a single item
//	assert.Item(t, result.Records[0].Item()).
//		HasString("city", "SF").
//		HasNumber("latitude", "37.7749")
package assert

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	ddbgeo "github.com/risafletcher/CSV-to-DynamoDB-Geo"
)

// RecordsAssertion provides fluent assertions for transformed records.
type RecordsAssertion struct {
	t       testing.TB
	records []ddbgeo.TransformedRecord
	table   *ddbgeo.Table
}

// Records creates a new RecordsAssertion for the given records, using the
// default attribute names.
func Records(t testing.TB, records []ddbgeo.TransformedRecord) *RecordsAssertion {
	return &RecordsAssertion{
		t:       t,
		records: records,
		table:   ddbgeo.NewTable(""),
	}
}

// WithTable switches the attribute names used by later assertions.
func (a *RecordsAssertion) WithTable(table *ddbgeo.Table) *RecordsAssertion {
	a.table = table
	return a
}

// HasCount asserts that there are exactly expected records.
func (a *RecordsAssertion) HasCount(expected int) *RecordsAssertion {
	a.t.Helper()
	if len(a.records) != expected {
		a.t.Errorf("expected %d records, got %d", expected, len(a.records))
	}
	return a
}

// HasUniqueRangeKeys asserts that no two records share a range key.
func (a *RecordsAssertion) HasUniqueRangeKeys() *RecordsAssertion {
	a.t.Helper()
	seen := make(map[string]int, len(a.records))
	for i, rec := range a.records {
		if j, ok := seen[rec.RangeKey]; ok {
			a.t.Errorf("records %d and %d share range key %q", j, i, rec.RangeKey)
		}
		seen[rec.RangeKey] = i
	}
	return a
}

// HasHashKeyLength asserts that every hash key has at most length digits and
// is the truncation of its record's geohash.
func (a *RecordsAssertion) HasHashKeyLength(length int) *RecordsAssertion {
	a.t.Helper()
	for i, rec := range a.records {
		digits := len(strings.TrimPrefix(rec.HashKey.String(), "-"))
		if digits > length {
			a.t.Errorf("record %d: hash key %s has %d digits, want at most %d", i, rec.HashKey, digits, length)
		}
		if want := ddbgeo.DeriveHashKey(rec.Geohash, length); rec.HashKey != want {
			a.t.Errorf("record %d: hash key %s is not derived from geohash %s (want %s)", i, rec.HashKey, rec.Geohash, want)
		}
	}
	return a
}

// HasAttribute asserts that record i has the named attribute with the given
// DynamoDB type tag, such as "S", "N" or "M".
func (a *RecordsAssertion) HasAttribute(i int, name, tag string) *RecordsAssertion {
	a.t.Helper()
	if i < 0 || i >= len(a.records) {
		a.t.Errorf("record %d out of range (%d records)", i, len(a.records))
		return a
	}

	value, ok := a.records[i].Attribute(name)
	if !ok {
		a.t.Errorf("record %d: missing attribute %s", i, name)
		return a
	}

	if got := TypeTag(value); got != tag {
		a.t.Errorf("record %d: attribute %s has type %s, want %s", i, name, got, tag)
	}
	return a
}

// MatchesInput asserts that the records correspond one to one, in order, to
// raw, and that each record lists the input's top level names first in input
// order, followed by the four computed attributes.
func (a *RecordsAssertion) MatchesInput(raw []ddbgeo.RawRecord) *RecordsAssertion {
	a.t.Helper()
	if len(raw) != len(a.records) {
		a.t.Errorf("expected %d records to match input, got %d", len(raw), len(a.records))
		return a
	}

	computed := []string{
		a.table.HashKeyAttributeName,
		a.table.RangeKeyAttributeName,
		a.table.GeohashAttributeName,
		a.table.GeoJSONAttributeName,
	}

	for i, rec := range a.records {
		var want []string
		for _, field := range raw[i].Fields {
			name, _, _ := strings.Cut(field, ".")
			name, _, _ = strings.Cut(name, "[")
			if name == "" {
				name = field
			}
			if !slices.Contains(computed, name) && !slices.Contains(want, name) {
				want = append(want, name)
			}
		}
		want = append(want, computed...)

		got := make([]string, len(rec.Attributes))
		for j, attr := range rec.Attributes {
			got[j] = attr.Name
		}

		if !slices.Equal(got, want) {
			a.t.Errorf("record %d: attribute order %v, want %v", i, got, want)
		}
	}
	return a
}

// ItemAssertion provides fluent assertions for a single DynamoDB item.
type ItemAssertion struct {
	t    testing.TB
	item ddbgeo.Item
}

// Item creates a new ItemAssertion for the given item.
func Item(t testing.TB, item ddbgeo.Item) *ItemAssertion {
	return &ItemAssertion{
		t:    t,
		item: item,
	}
}

// HasString asserts that the item has the named S attribute with the expected value.
func (a *ItemAssertion) HasString(name, expected string) *ItemAssertion {
	a.t.Helper()
	if attr, exists := a.item[name]; !exists {
		a.t.Errorf("item missing attribute %s", name)
	} else if s, ok := attr.(*types.AttributeValueMemberS); !ok {
		a.t.Errorf("attribute %s is %s, not a string", name, TypeTag(attr))
	} else if s.Value != expected {
		a.t.Errorf("attribute %s expected %q, got %q", name, expected, s.Value)
	}
	return a
}

// HasNumber asserts that the item has the named N attribute with the expected text.
func (a *ItemAssertion) HasNumber(name, expected string) *ItemAssertion {
	a.t.Helper()
	if attr, exists := a.item[name]; !exists {
		a.t.Errorf("item missing attribute %s", name)
	} else if n, ok := attr.(*types.AttributeValueMemberN); !ok {
		a.t.Errorf("attribute %s is %s, not a number", name, TypeTag(attr))
	} else if n.Value != expected {
		a.t.Errorf("attribute %s expected %s, got %s", name, expected, n.Value)
	}
	return a
}

// HasNull asserts that the item has the named NULL attribute.
func (a *ItemAssertion) HasNull(name string) *ItemAssertion {
	a.t.Helper()
	if attr, exists := a.item[name]; !exists {
		a.t.Errorf("item missing attribute %s", name)
	} else if _, ok := attr.(*types.AttributeValueMemberNULL); !ok {
		a.t.Errorf("attribute %s is %s, not null", name, TypeTag(attr))
	}
	return a
}

// LacksAttribute asserts that the item has no attribute with the given name.
func (a *ItemAssertion) LacksAttribute(name string) *ItemAssertion {
	a.t.Helper()
	if _, exists := a.item[name]; exists {
		a.t.Errorf("item has unexpected attribute %s", name)
	}
	return a
}

// TypeTag returns the DynamoDB JSON type tag of value.
func TypeTag(value types.AttributeValue) string {
	switch value.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberM:
		return "M"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	default:
		return fmt.Sprintf("%T", value)
	}
}
