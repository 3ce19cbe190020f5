package ddbgeo

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// An Encoder writes records in the DynamoDB JSON import format: one
// {"Item":{...}} object per line, each line terminated by a newline.
type Encoder struct {
	w   io.Writer
	buf bytes.Buffer
}

// NewEncoder returns an encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes rec as a single line. Attributes are written in record order.
func (e *Encoder) Encode(rec TransformedRecord) error {
	e.buf.Reset()
	e.buf.WriteString(`{"Item":{`)

	for i, attr := range rec.Attributes {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := writeString(&e.buf, attr.Name); err != nil {
			return err
		}
		e.buf.WriteByte(':')
		if err := writeAttributeValue(&e.buf, attr.Value); err != nil {
			return fmt.Errorf("failed to encode attribute %s: %w", attr.Name, err)
		}
	}

	e.buf.WriteString("}}\n")

	_, err := e.w.Write(e.buf.Bytes())
	return err
}

// Serialize encodes records in order into the DynamoDB JSON import format.
func Serialize(records []TransformedRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// marshalJSON is json.Marshal without HTML escaping or a trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := marshalJSON(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func writeStrings(buf *bytes.Buffer, values []string) error {
	buf.WriteByte('[')
	for i, s := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, s); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeAttributeValue(buf *bytes.Buffer, av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		buf.WriteString(`{"S":`)
		if err := writeString(buf, v.Value); err != nil {
			return err
		}
	case *types.AttributeValueMemberN:
		buf.WriteString(`{"N":`)
		if err := writeString(buf, v.Value); err != nil {
			return err
		}
	case *types.AttributeValueMemberBOOL:
		fmt.Fprintf(buf, `{"BOOL":%t`, v.Value)
	case *types.AttributeValueMemberNULL:
		fmt.Fprintf(buf, `{"NULL":%t`, v.Value)
	case *types.AttributeValueMemberB:
		fmt.Fprintf(buf, `{"B":"%s"`, base64.StdEncoding.EncodeToString(v.Value))
	case *types.AttributeValueMemberSS:
		buf.WriteString(`{"SS":`)
		if err := writeStrings(buf, v.Value); err != nil {
			return err
		}
	case *types.AttributeValueMemberNS:
		buf.WriteString(`{"NS":`)
		if err := writeStrings(buf, v.Value); err != nil {
			return err
		}
	case *types.AttributeValueMemberBS:
		encoded := make([]string, len(v.Value))
		for i, b := range v.Value {
			encoded[i] = base64.StdEncoding.EncodeToString(b)
		}
		buf.WriteString(`{"BS":`)
		if err := writeStrings(buf, encoded); err != nil {
			return err
		}
	case *types.AttributeValueMemberM:
		buf.WriteString(`{"M":{`)
		keys := make([]string, 0, len(v.Value))
		for key := range v.Value {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeAttributeValue(buf, v.Value[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case *types.AttributeValueMemberL:
		buf.WriteString(`{"L":[`)
		for i, item := range v.Value {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeAttributeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("unsupported attribute value type %T", av)
	}

	buf.WriteByte('}')
	return nil
}

// A Decoder reads records written by an Encoder.
type Decoder struct {
	Table *Table // attribute names used to extract the typed views
	dec   *json.Decoder
}

// NewDecoder returns a decoder that reads from r using the default attribute names.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		Table: NewTable(""),
		dec:   json.NewDecoder(r),
	}
}

// Decode reads the next record. It returns io.EOF when the input is exhausted.
func (d *Decoder) Decode() (TransformedRecord, error) {
	var line struct {
		Item json.RawMessage `json:"Item"`
	}
	if err := d.dec.Decode(&line); err != nil {
		return TransformedRecord{}, err
	}
	if line.Item == nil {
		return TransformedRecord{}, errors.New("missing Item object")
	}

	attrs, err := decodeAttributes(line.Item)
	if err != nil {
		return TransformedRecord{}, err
	}

	rec := TransformedRecord{Attributes: attrs}
	point, err := d.Table.UnmarshalPoint(rec.Item())
	if err != nil {
		return TransformedRecord{}, fmt.Errorf("failed to unmarshal point: %w", err)
	}

	rec.HashKey = point.HashKey
	rec.RangeKey = point.RangeKey
	rec.Geohash = point.Geohash
	rec.GeoJSON = point.GeoJSON
	rec.Latitude = point.Latitude
	rec.Longitude = point.Longitude

	return rec, nil
}

// Deserialize decodes every record in data.
func Deserialize(data []byte) ([]TransformedRecord, error) {
	var (
		dec     = NewDecoder(bytes.NewReader(data))
		records []TransformedRecord
	)

	for {
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return records, nil
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

// decodeAttributes decodes a JSON object of typed attribute values, keeping
// the order of its keys.
func decodeAttributes(raw json.RawMessage) ([]Attribute, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	if tok, err := dec.Token(); err != nil {
		return nil, err
	} else if tok != json.Delim('{') {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var attrs []Attribute
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected attribute name, got %v", tok)
		}

		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to read attribute %s: %w", name, err)
		}

		value, err := decodeAttributeValue(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode attribute %s: %w", name, err)
		}
		attrs = append(attrs, Attribute{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return attrs, nil
}

func decodeAttributeValue(raw json.RawMessage) (types.AttributeValue, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("expected exactly one type tag, got %d", len(tagged))
	}

	for tag, body := range tagged {
		switch tag {
		case "S":
			var v string
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberS{Value: v}, err
		case "N":
			var v string
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberN{Value: v}, err
		case "BOOL":
			var v bool
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberBOOL{Value: v}, err
		case "NULL":
			var v bool
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberNULL{Value: v}, err
		case "B":
			var v []byte
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberB{Value: v}, err
		case "SS":
			var v []string
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberSS{Value: v}, err
		case "NS":
			var v []string
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberNS{Value: v}, err
		case "BS":
			var v [][]byte
			err := json.Unmarshal(body, &v)
			return &types.AttributeValueMemberBS{Value: v}, err
		case "M":
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(body, &fields); err != nil {
				return nil, err
			}
			value := make(map[string]types.AttributeValue, len(fields))
			for key, field := range fields {
				decoded, err := decodeAttributeValue(field)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
				value[key] = decoded
			}
			return &types.AttributeValueMemberM{Value: value}, nil
		case "L":
			var items []json.RawMessage
			if err := json.Unmarshal(body, &items); err != nil {
				return nil, err
			}
			value := make([]types.AttributeValue, len(items))
			for i, item := range items {
				decoded, err := decodeAttributeValue(item)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", i, err)
				}
				value[i] = decoded
			}
			return &types.AttributeValueMemberL{Value: value}, nil
		default:
			return nil, fmt.Errorf("unknown type tag %q", tag)
		}
	}

	return nil, errors.New("unreachable")
}
