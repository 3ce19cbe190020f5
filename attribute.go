package ddbgeo

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxListIndex bounds list indexes in headers such as "tags[3]".
const maxListIndex = 1 << 12

// DynamoDB number limits: 38 significant digits, magnitudes from 1E-130 up
// to just under 1E+126.
const (
	maxNumberDigits   = 38
	minNumberExponent = -130
	maxNumberExponent = 125
)

var numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)

// InferAttribute converts CSV text into an attribute value. Empty text and
// "null" become NULL, "true" and "false" become BOOL, decimal numbers become
// N with the original text preserved, and anything else is a string.
// Numbers with leading zeros, such as postal codes, and numbers DynamoDB
// cannot store stay strings.
func InferAttribute(text string) types.AttributeValue {
	switch {
	case text == "" || strings.EqualFold(text, "null"):
		return &types.AttributeValueMemberNULL{Value: true}
	case strings.EqualFold(text, "true"):
		return &types.AttributeValueMemberBOOL{Value: true}
	case strings.EqualFold(text, "false"):
		return &types.AttributeValueMemberBOOL{Value: false}
	case numberPattern.MatchString(text) && storableNumber(text):
		return &types.AttributeValueMemberN{Value: text}
	default:
		return &types.AttributeValueMemberS{Value: text}
	}
}

// storableNumber reports whether text, already matched by numberPattern, is
// within DynamoDB's precision and magnitude limits.
func storableNumber(text string) bool {
	mantissa, exponent := text, 0
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		e, err := strconv.Atoi(text[i+1:])
		if err != nil || e > 1<<20 || e < -(1<<20) {
			return false
		}
		mantissa, exponent = text[:i], e
	}

	whole, fraction, _ := strings.Cut(strings.TrimPrefix(mantissa, "-"), ".")
	digits := whole + fraction
	significant := strings.TrimLeft(digits, "0")
	if significant == "" {
		return true
	}

	if len(strings.TrimRight(significant, "0")) > maxNumberDigits {
		return false
	}

	// decimal exponent of the leading significant digit
	magnitude := len(whole) - (len(digits) - len(significant)) - 1 + exponent
	return magnitude >= minNumberExponent && magnitude <= maxNumberExponent
}

type pathSegment struct {
	key   string
	index int
	list  bool
}

// parseFieldPath splits a header such as "address.lines[0]" into segments.
// It reports false for names that are not valid paths.
func parseFieldPath(name string) ([]pathSegment, bool) {
	if !strings.ContainsAny(name, ".[") {
		return []pathSegment{{key: name}}, true
	}

	var segments []pathSegment
	for _, part := range strings.Split(name, ".") {
		key, rest, found := strings.Cut(part, "[")
		if key == "" {
			return nil, false
		}
		segments = append(segments, pathSegment{key: key})
		if !found {
			continue
		}

		rest = "[" + rest
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 2 {
				return nil, false
			}
			index, err := strconv.Atoi(rest[1:end])
			if err != nil || index < 0 || index > maxListIndex {
				return nil, false
			}
			segments = append(segments, pathSegment{index: index, list: true})
			rest = rest[end+1:]
		}
	}

	return segments, true
}

type nodeKind int

const (
	scalarNode nodeKind = iota
	mapNode
	listNode
)

// attributeNode is an intermediate tree used to assemble nested attributes
// while keeping the insertion order of top level names.
type attributeNode struct {
	kind   nodeKind
	value  types.AttributeValue
	keys   []string
	fields map[string]*attributeNode
	items  []*attributeNode
}

func newContainer(kind nodeKind) *attributeNode {
	return &attributeNode{kind: kind, fields: map[string]*attributeNode{}}
}

func (n *attributeNode) get(seg pathSegment) *attributeNode {
	if seg.list {
		if seg.index < len(n.items) {
			return n.items[seg.index]
		}
		return nil
	}
	return n.fields[seg.key]
}

func (n *attributeNode) put(seg pathSegment, child *attributeNode) {
	if seg.list {
		for len(n.items) <= seg.index {
			n.items = append(n.items, nil)
		}
		n.items[seg.index] = child
		return
	}
	if _, ok := n.fields[seg.key]; !ok {
		n.keys = append(n.keys, seg.key)
	}
	n.fields[seg.key] = child
}

func (n *attributeNode) insert(segments []pathSegment, value types.AttributeValue) bool {
	seg := segments[0]
	if seg.list != (n.kind == listNode) {
		return false
	}

	existing := n.get(seg)
	if len(segments) == 1 {
		if existing != nil && existing.kind != scalarNode {
			return false
		}
		n.put(seg, &attributeNode{kind: scalarNode, value: value})
		return true
	}

	want := mapNode
	if segments[1].list {
		want = listNode
	}

	if existing == nil {
		existing = newContainer(want)
		n.put(seg, existing)
	} else if existing.kind != want {
		return false
	}

	return existing.insert(segments[1:], value)
}

func (n *attributeNode) attributeValue() types.AttributeValue {
	switch n.kind {
	case mapNode:
		value := make(map[string]types.AttributeValue, len(n.fields))
		for key, child := range n.fields {
			value[key] = child.attributeValue()
		}
		return &types.AttributeValueMemberM{Value: value}
	case listNode:
		value := make([]types.AttributeValue, len(n.items))
		for i, child := range n.items {
			if child == nil {
				value[i] = &types.AttributeValueMemberNULL{Value: true}
			} else {
				value[i] = child.attributeValue()
			}
		}
		return &types.AttributeValueMemberL{Value: value}
	default:
		return n.value
	}
}

// itemBuilder assembles the ordered attributes of one output item.
type itemBuilder struct {
	root *attributeNode
}

func newItemBuilder() *itemBuilder {
	return &itemBuilder{root: newContainer(mapNode)}
}

// set stores value under the literal top level name, replacing any previous
// value while keeping its position.
func (b *itemBuilder) set(name string, value types.AttributeValue) {
	b.root.put(pathSegment{key: name}, &attributeNode{kind: scalarNode, value: value})
}

// setPath stores value under the header path of name. Names that are not
// valid paths, or that conflict with attributes already set, are stored flat.
func (b *itemBuilder) setPath(name string, value types.AttributeValue) {
	segments, ok := parseFieldPath(name)
	if !ok || !b.root.insert(segments, value) {
		b.set(name, value)
	}
}

func (b *itemBuilder) attributes() []Attribute {
	attrs := make([]Attribute, 0, len(b.root.keys))
	for _, key := range b.root.keys {
		attrs = append(attrs, Attribute{Name: key, Value: b.root.fields[key].attributeValue()})
	}
	return attrs
}
