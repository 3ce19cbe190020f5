package ddbgeo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IDGenerator returns a new unique range key on every call.
type IDGenerator func() string

// DefaultIDGenerator returns a random (version 4) UUID.
func DefaultIDGenerator() string {
	return uuid.NewString()
}

// ParsePolicy decides what happens to records whose coordinates cannot be parsed.
type ParsePolicy int

const (
	// PolicySkip drops the record and reports it in TransformResult.Rejected.
	PolicySkip ParsePolicy = iota
	// PolicyFail aborts the transformation with the record's ParseError.
	PolicyFail
)

var worldBound = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// TransformOptions contains configuration options for transforming records.
type TransformOptions struct {
	HashKeyLength int         // Significant digits of the hash key. Default is 4.
	NewID         IDGenerator // Range key generator, uuid when nil. Must be safe for concurrent use when Workers > 1.
	Table         *Table      // Attribute names of the computed attributes
	InferTypes    bool        // If true, passthrough fields are typed with InferAttribute; otherwise they are strings.
	FlatHeaders   bool        // If true, headers such as "a.b" are not expanded into nested attributes.
	Policy        ParsePolicy // What to do with records that fail coordinate parsing
	Workers       int         // Records transformed in parallel. Default is 1.
	Logger        *zap.Logger
}

func (o *TransformOptions) apply(opts []func(*TransformOptions)) {
	for _, opt := range opts {
		opt(o)
	}
}

func newTransformOptions(opts ...func(*TransformOptions)) TransformOptions {
	options := TransformOptions{
		HashKeyLength: DefaultHashKeyLength,
		NewID:         DefaultIDGenerator,
		Table:         NewTable(""),
		InferTypes:    true,
		Policy:        PolicySkip,
		Workers:       1,
		Logger:        zap.NewNop(),
	}
	options.apply(opts)

	if options.NewID == nil {
		options.NewID = DefaultIDGenerator
	}
	if options.Table == nil {
		options.Table = NewTable("")
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}

// Transformer maps raw records to output records.
type Transformer struct {
	opts TransformOptions
}

// NewTransformer creates a Transformer with default options, adjusted by opts.
func NewTransformer(opts ...func(*TransformOptions)) *Transformer {
	return &Transformer{opts: newTransformOptions(opts...)}
}

// TransformResult holds the output of a transformation. Records are in input
// order. Rejected lists the records dropped under PolicySkip.
type TransformResult struct {
	Records  []TransformedRecord
	Rejected []*ParseError
}

// Transform converts records with the default options and the given hash key
// length and id generator. A nil newID generates uuids. Records with
// unparsable coordinates are dropped.
func Transform(records []RawRecord, hashKeyLength int, newID IDGenerator) ([]TransformedRecord, error) {
	result, err := NewTransformer(func(o *TransformOptions) {
		o.HashKeyLength = hashKeyLength
		o.NewID = newID
	}).Transform(context.Background(), records)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// Transform converts every record, preserving input order. NewID is called
// exactly once per successfully parsed record.
func (t *Transformer) Transform(ctx context.Context, records []RawRecord) (*TransformResult, error) {
	var (
		out  = make([]TransformedRecord, len(records))
		errs = make([]error, len(records))
	)

	if t.opts.Workers > 1 && len(records) > 1 {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(t.opts.Workers)

		for i := range records {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i], errs[i] = t.transformOne(i, records[i])
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i], errs[i] = t.transformOne(i, records[i])
		}
	}

	result := &TransformResult{Records: make([]TransformedRecord, 0, len(records))}
	for i, err := range errs {
		if err == nil {
			result.Records = append(result.Records, out[i])
			continue
		}

		var parseErr *ParseError
		if !errors.As(err, &parseErr) || t.opts.Policy == PolicyFail {
			return nil, err
		}

		t.opts.Logger.Warn("Skipping record with invalid coordinates",
			zap.Int("line", parseErr.Line),
			zap.String("field", parseErr.Field),
			zap.String("value", parseErr.Value))
		result.Rejected = append(result.Rejected, parseErr)
	}

	return result, nil
}

func (t *Transformer) transformOne(index int, rec RawRecord) (TransformedRecord, error) {
	latText, lat, err := parseCoordinate(index, rec, FieldLatitude)
	if err != nil {
		return TransformedRecord{}, err
	}
	lonText, lon, err := parseCoordinate(index, rec, FieldLongitude)
	if err != nil {
		return TransformedRecord{}, err
	}

	if !worldBound.Contains(orb.Point{lon, lat}) {
		t.opts.Logger.Warn("Coordinates out of range",
			zap.Int("line", rec.Line),
			zap.Float64("latitude", lat),
			zap.Float64("longitude", lon))
	}

	cellID := ComputeCellID(lat, lon)
	hashKey := DeriveHashKey(cellID, t.opts.HashKeyLength)

	latAttr, err := attributevalue.Marshal(lat)
	if err != nil {
		return TransformedRecord{}, fmt.Errorf("failed to marshal latitude: %w", err)
	}
	lonAttr, err := attributevalue.Marshal(lon)
	if err != nil {
		return TransformedRecord{}, fmt.Errorf("failed to marshal longitude: %w", err)
	}

	geoJSON, err := marshalJSON(geoJSONPoint{
		Type:        "Point",
		Coordinates: [2]string{lonText, latText},
	})
	if err != nil {
		return TransformedRecord{}, fmt.Errorf("failed to marshal geojson: %w", err)
	}

	table := t.opts.Table
	builder := newItemBuilder()

	for i, name := range rec.Fields {
		switch {
		case name == FieldLatitude:
			builder.set(name, latAttr)
		case name == FieldLongitude:
			builder.set(name, lonAttr)
		case table.reserved(name):
			// overwritten by the computed attributes below
		default:
			value := t.fieldAttribute(rec.Values[i])
			if t.opts.FlatHeaders {
				builder.set(name, value)
			} else {
				builder.setPath(name, value)
			}
		}
	}

	rangeKey := t.opts.NewID()

	builder.set(table.HashKeyAttributeName, &types.AttributeValueMemberN{Value: hashKey.String()})
	builder.set(table.RangeKeyAttributeName, &types.AttributeValueMemberS{Value: rangeKey})
	builder.set(table.GeohashAttributeName, &types.AttributeValueMemberN{Value: cellID.String()})
	builder.set(table.GeoJSONAttributeName, &types.AttributeValueMemberS{Value: string(geoJSON)})

	return TransformedRecord{
		Attributes: builder.attributes(),
		HashKey:    hashKey,
		RangeKey:   rangeKey,
		Geohash:    cellID,
		GeoJSON:    string(geoJSON),
		Latitude:   lat,
		Longitude:  lon,
	}, nil
}

func (t *Transformer) fieldAttribute(text string) types.AttributeValue {
	if t.opts.InferTypes {
		return InferAttribute(text)
	}
	return &types.AttributeValueMemberS{Value: text}
}

// parseCoordinate returns the original text of the named field and its value.
func parseCoordinate(index int, rec RawRecord, field string) (string, float64, error) {
	text, ok := rec.Get(field)
	if !ok {
		return "", 0, &ParseError{Line: rec.Line, Index: index, Field: field, Err: ErrMissingColumn}
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return text, 0, &ParseError{Line: rec.Line, Index: index, Field: field, Value: text, Err: ErrInvalidCoordinate}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return text, 0, &ParseError{Line: rec.Line, Index: index, Field: field, Value: text, Err: ErrInvalidCoordinate}
	}

	return text, value, nil
}

// geoJSONPoint is a GeoJSON point whose coordinates keep the input text.
type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates [2]string `json:"coordinates"`
}
