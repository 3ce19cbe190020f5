package ddbgeo

import (
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestInferAttribute(t *testing.T) {
	tests := []struct {
		text string
		want types.AttributeValue
	}{
		{"", &types.AttributeValueMemberNULL{Value: true}},
		{"null", &types.AttributeValueMemberNULL{Value: true}},
		{"NULL", &types.AttributeValueMemberNULL{Value: true}},
		{"true", &types.AttributeValueMemberBOOL{Value: true}},
		{"False", &types.AttributeValueMemberBOOL{Value: false}},
		{"42", &types.AttributeValueMemberN{Value: "42"}},
		{"-0.5", &types.AttributeValueMemberN{Value: "-0.5"}},
		{"1.50", &types.AttributeValueMemberN{Value: "1.50"}},
		{"6.02e23", &types.AttributeValueMemberN{Value: "6.02e23"}},
		{"0", &types.AttributeValueMemberN{Value: "0"}},
		{"02134", &types.AttributeValueMemberS{Value: "02134"}},
		{"1,000", &types.AttributeValueMemberS{Value: "1,000"}},
		{" 42", &types.AttributeValueMemberS{Value: " 42"}},
		{"NaN", &types.AttributeValueMemberS{Value: "NaN"}},
		{"0x1F", &types.AttributeValueMemberS{Value: "0x1F"}},
		{"SF", &types.AttributeValueMemberS{Value: "SF"}},
		{"12345678901234567890123456789012345678", &types.AttributeValueMemberN{Value: "12345678901234567890123456789012345678"}},
		{"123456789012345678901234567890123456789", &types.AttributeValueMemberS{Value: "123456789012345678901234567890123456789"}},
		{"1.23456789012345678901234567890123456789", &types.AttributeValueMemberS{Value: "1.23456789012345678901234567890123456789"}},
		{"10000000000000000000000000000000000000000", &types.AttributeValueMemberN{Value: "10000000000000000000000000000000000000000"}},
		{"0.000000000000000000000000000000000000000000001", &types.AttributeValueMemberN{Value: "0.000000000000000000000000000000000000000000001"}},
		{"9.9e125", &types.AttributeValueMemberN{Value: "9.9e125"}},
		{"1e126", &types.AttributeValueMemberS{Value: "1e126"}},
		{"1e-130", &types.AttributeValueMemberN{Value: "1e-130"}},
		{"1e-131", &types.AttributeValueMemberS{Value: "1e-131"}},
		{"0.01e-129", &types.AttributeValueMemberS{Value: "0.01e-129"}},
		{"1e400", &types.AttributeValueMemberS{Value: "1e400"}},
		{"0e400", &types.AttributeValueMemberN{Value: "0e400"}},
		{"-1E+125", &types.AttributeValueMemberN{Value: "-1E+125"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := InferAttribute(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InferAttribute(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseFieldPath(t *testing.T) {
	tests := []struct {
		name string
		want []pathSegment
		ok   bool
	}{
		{"city", []pathSegment{{key: "city"}}, true},
		{"address.zip", []pathSegment{{key: "address"}, {key: "zip"}}, true},
		{"tags[1]", []pathSegment{{key: "tags"}, {index: 1, list: true}}, true},
		{"a.b[0][2].c", []pathSegment{{key: "a"}, {key: "b"}, {index: 0, list: true}, {index: 2, list: true}, {key: "c"}}, true},
		{".x", nil, false},
		{"a..b", nil, false},
		{"a[", nil, false},
		{"a[x]", nil, false},
		{"a[-1]", nil, false},
		{"a[1]b", nil, false},
		{"a[99999]", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFieldPath(tt.name)
			if ok != tt.ok {
				t.Fatalf("parseFieldPath(%q) ok = %t, want %t", tt.name, ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseFieldPath(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestItemBuilder(t *testing.T) {
	s := func(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

	t.Run("nested paths keep first position", func(t *testing.T) {
		b := newItemBuilder()
		b.setPath("address.street", s("Main"))
		b.setPath("city", s("SF"))
		b.setPath("address.zip", s("94103"))
		b.setPath("tags[1]", s("b"))

		attrs := b.attributes()
		names := make([]string, len(attrs))
		for i, attr := range attrs {
			names[i] = attr.Name
		}
		if want := []string{"address", "city", "tags"}; !reflect.DeepEqual(names, want) {
			t.Fatalf("names = %v, want %v", names, want)
		}

		wantAddress := &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"street": s("Main"),
			"zip":    s("94103"),
		}}
		if !reflect.DeepEqual(attrs[0].Value, wantAddress) {
			t.Errorf("address = %#v, want %#v", attrs[0].Value, wantAddress)
		}

		wantTags := &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberNULL{Value: true},
			s("b"),
		}}
		if !reflect.DeepEqual(attrs[2].Value, wantTags) {
			t.Errorf("tags = %#v, want %#v", attrs[2].Value, wantTags)
		}
	})

	t.Run("conflicts fall back to flat names", func(t *testing.T) {
		b := newItemBuilder()
		b.setPath("a", s("scalar"))
		b.setPath("a.b", s("nested"))
		b.setPath("x[0]", s("list"))
		b.setPath("x.y", s("map"))

		attrs := b.attributes()
		if len(attrs) != 4 {
			t.Fatalf("expected 4 attributes, got %d", len(attrs))
		}
		if attrs[1].Name != "a.b" || attrs[3].Name != "x.y" {
			t.Errorf("expected flat fallbacks, got %s and %s", attrs[1].Name, attrs[3].Name)
		}
	})

	t.Run("set replaces in place", func(t *testing.T) {
		b := newItemBuilder()
		b.set("latitude", s("1"))
		b.set("city", s("SF"))
		b.set("latitude", s("2"))

		attrs := b.attributes()
		if attrs[0].Name != "latitude" || !reflect.DeepEqual(attrs[0].Value, s("2")) {
			t.Errorf("expected latitude replaced in place, got %s=%#v", attrs[0].Name, attrs[0].Value)
		}
	})
}
