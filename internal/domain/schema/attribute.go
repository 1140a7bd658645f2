package schema

import (
	"slices"
	"strings"
)

// Kind selects the metadata namespace being resolved.
type Kind string

// Schema kinds.
const (
	// Attributes holds measured or derived per-record attributes.
	Attributes  Kind = "attributes"
	Identifiers Kind = "identifiers"
)

// IsValid reports whether k is a known schema kind.
func (k Kind) IsValid() bool {
	return k == Attributes || k == Identifiers
}

// ProcessedType collapses raw engine value types into the classes the query
// compiler and filter assembler care about.
type ProcessedType string

// Processed value types.
const (
	Float          ProcessedType = "float"
	Integer        ProcessedType = "integer"
	Keyword        ProcessedType = "keyword"
	OrderedKeyword ProcessedType = "orderedKeyword"
	Date           ProcessedType = "date"
	Geo            ProcessedType = "geo"
)

// IsNumeric reports whether values of this type are compared with range operators.
func (t ProcessedType) IsNumeric() bool {
	return t == Float || t == Integer
}

// IsKeyword reports whether values of this type are matched as terms.
func (t ProcessedType) IsKeyword() bool {
	return t == Keyword || t == OrderedKeyword
}

// Bins carries histogram hints declared alongside an attribute.
type Bins struct {
	Min   float64
	Max   float64
	Count int
	Scale string
}

// IsLog reports whether the attribute is binned on a logarithmic scale.
func (b Bins) IsLog() bool {
	return strings.HasPrefix(b.Scale, "log")
}

// Attribute is immutable metadata describing one declared field.
type Attribute struct {
	group         string
	name          string
	rawType       string
	processedType ProcessedType
	summary       []string
	returnType    string
	synonyms      []string
	enum          []string
	bins          *Bins
	displayName   string
	description   string
}

// Spec holds the raw fields an Attribute is built from.
type Spec struct {
	Group       string
	Name        string
	Type        string
	Summary     []string
	ReturnType  string
	Synonyms    []string
	Enum        []string
	Bins        *Bins
	DisplayName string
	Description string
}

// NewAttribute derives the processed type from s and returns an immutable attribute.
func NewAttribute(s Spec) Attribute {
	summary := slices.Clone(s.Summary)
	if len(summary) == 0 {
		summary = []string{"value"}
	}
	returnType := s.ReturnType
	if returnType == "" {
		returnType = summary[0]
	}
	enum := make([]string, 0, len(s.Enum))
	for _, v := range s.Enum {
		enum = append(enum, strings.ToLower(v))
	}
	return Attribute{
		group:         s.Group,
		name:          s.Name,
		rawType:       s.Type,
		processedType: Process(s.Type, summary, enum),
		summary:       summary,
		returnType:    returnType,
		synonyms:      slices.Clone(s.Synonyms),
		enum:          enum,
		bins:          s.Bins,
		displayName:   s.DisplayName,
		description:   s.Description,
	}
}

// Process maps a raw engine type to its processed type.
// A keyword becomes an ordered keyword when its summary declares an enum ordering.
func Process(rawType string, summary, enum []string) ProcessedType {
	switch rawType {
	case "long", "integer", "short", "byte", "unsigned_long":
		return Integer
	case "float", "half_float", "double", "scaled_float":
		return Float
	case "date":
		return Date
	case "geo_point":
		return Geo
	case "keyword":
		if slices.Contains(summary, "enum") && len(enum) > 0 {
			return OrderedKeyword
		}
		return Keyword
	default:
		return Keyword
	}
}

// Group returns the record category the attribute belongs to.
func (a Attribute) Group() string { return a.group }

// Name returns the canonical attribute name.
func (a Attribute) Name() string { return a.name }

// RawType returns the engine mapping type, e.g. "long" or "half_float".
func (a Attribute) RawType() string { return a.rawType }

// Type returns the processed value type.
func (a Attribute) Type() ProcessedType { return a.processedType }

// Summary returns the declared summary functions, default first.
func (a Attribute) Summary() []string { return a.summary }

// DefaultSummary returns the first declared summary function.
func (a Attribute) DefaultSummary() string { return a.summary[0] }

// ReturnType returns the summary reported as the attribute's value.
func (a Attribute) ReturnType() string { return a.returnType }

// Synonyms returns the explicitly declared alternative names.
func (a Attribute) Synonyms() []string { return a.synonyms }

// Enum returns the ordered enum constraint, lowercased. Empty when unconstrained.
func (a Attribute) Enum() []string { return a.enum }

// Bins returns histogram hints, or nil.
func (a Attribute) Bins() *Bins { return a.bins }

// DisplayName returns the human-readable name.
func (a Attribute) DisplayName() string { return a.displayName }

// Description returns the attribute description.
func (a Attribute) Description() string { return a.description }

// ValueField returns the nested document field holding the attribute's value,
// e.g. "long_value". Geo points are stored under "geo_point_value".
func (a Attribute) ValueField() string {
	if a.rawType == "" {
		return "keyword_value"
	}
	return a.rawType + "_value"
}

// IsLogScaled reports whether a bare reference implies a positive-value filter.
func (a Attribute) IsLogScaled() bool {
	return a.bins != nil && a.bins.IsLog()
}
