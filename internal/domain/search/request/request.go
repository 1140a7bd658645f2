package request

import (
	"fmt"
	"slices"
	"strings"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query string length.
	MaxQueryLength  = 16384
	DefaultSize     = 10
	MaxSize         = 1000000
	DefaultCategory = "taxon"
	DefaultTaxonomy = "ncbi"
)

// Categories lists the record categories the engine indexes.
var Categories = []string{"taxon", "assembly", "sample", "feature", "file"}

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort is one sort directive. By names a core field, an attribute
// (optionally "field:stat"), a taxonomic rank or a name class.
type Sort struct {
	By    string
	Order Order
}

// Exclusions lists per-provenance field exclusions.
type Exclusions struct {
	Direct        []string
	Descendant    []string
	Ancestral     []string
	Estimated     []string
	Missing       []string
	Unclassified  bool
	Environmental bool
}

// Params holds raw request parameters before normalization.
type Params struct {
	Category         string
	Taxonomy         string
	Query            string
	Fields           []string
	OptionalFields   []string
	NameClasses      []string
	Ranks            []string
	SummaryValues    []string
	MaxDepth         *int
	LCA              string
	Exclusions       Exclusions
	IncludeEstimates bool
	IncludeRawValues bool
	SearchRawValues  bool
	Size             int
	Offset           int
	Sort             []Sort
	Aggregations     map[string]any
	ProgressID       string
}

// Request is a validated, normalized search descriptor.
type Request struct {
	p Params
}

// New validates and normalizes search parameters.
// Defaults: category=taxon, taxonomy=ncbi, size=10.
func New(p Params) (Request, error) {
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if !slices.Contains(Categories, p.Category) {
		return Request{}, fmt.Errorf("unknown category %q", p.Category)
	}
	p.Taxonomy = strings.TrimSpace(p.Taxonomy)
	if p.Taxonomy == "" {
		p.Taxonomy = DefaultTaxonomy
	}
	if len(p.Query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if p.Size < 0 {
		return Request{}, fmt.Errorf("size must not be negative")
	}
	if p.Size == 0 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		return Request{}, fmt.Errorf("size too large (max %d)", MaxSize)
	}
	if p.Offset < 0 {
		return Request{}, fmt.Errorf("offset must not be negative")
	}
	if p.MaxDepth != nil && *p.MaxDepth < 0 {
		return Request{}, fmt.Errorf("max depth must not be negative")
	}
	p.Sort = slices.Clone(p.Sort)
	for i, s := range p.Sort {
		if strings.TrimSpace(s.By) == "" {
			return Request{}, fmt.Errorf("sort %d: field is required", i)
		}
		switch Order(strings.ToLower(string(s.Order))) {
		case "", Asc:
			p.Sort[i].Order = Asc
		case Desc:
			p.Sort[i].Order = Desc
		default:
			return Request{}, fmt.Errorf("sort %d: invalid order %q", i, s.Order)
		}
	}

	p.Fields = normalizeList(p.Fields)
	p.OptionalFields = normalizeList(p.OptionalFields)
	p.NameClasses = normalizeList(p.NameClasses)
	p.Ranks = normalizeList(p.Ranks)
	p.SummaryValues = normalizeList(p.SummaryValues)
	p.Exclusions.Direct = normalizeList(p.Exclusions.Direct)
	p.Exclusions.Descendant = normalizeList(p.Exclusions.Descendant)
	p.Exclusions.Ancestral = normalizeList(p.Exclusions.Ancestral)
	p.Exclusions.Estimated = normalizeList(p.Exclusions.Estimated)
	p.Exclusions.Missing = normalizeList(p.Exclusions.Missing)
	p.LCA = strings.TrimSpace(p.LCA)

	return Request{p: p}, nil
}

// normalizeList trims, lowercases and deduplicates, keeping first-seen order.
func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Category returns the record category.
func (r *Request) Category() string { return r.p.Category }

// Taxonomy returns the taxonomy id.
func (r *Request) Taxonomy() string { return r.p.Taxonomy }

// Query returns the raw query string.
func (r *Request) Query() string { return r.p.Query }

// Fields returns requested output fields, possibly carrying ":subset" suffixes.
func (r *Request) Fields() []string { return r.p.Fields }

// OptionalFields returns fields projected when present but never required.
func (r *Request) OptionalFields() []string { return r.p.OptionalFields }

// NameClasses returns the name classes to project.
func (r *Request) NameClasses() []string { return r.p.NameClasses }

// Ranks returns the taxonomic ranks to project.
func (r *Request) Ranks() []string { return r.p.Ranks }

// SummaryValues returns the summary stats to report alongside values.
func (r *Request) SummaryValues() []string { return r.p.SummaryValues }

// MaxDepth returns the lineage depth bound, or nil.
func (r *Request) MaxDepth() *int { return r.p.MaxDepth }

// LCA returns the ancestor at which projected lineages are truncated.
func (r *Request) LCA() string { return r.p.LCA }

// Exclusions returns the provenance exclusion lists.
func (r *Request) Exclusions() Exclusions { return r.p.Exclusions }

// IncludeEstimates reports whether ancestral values are admitted.
func (r *Request) IncludeEstimates() bool { return r.p.IncludeEstimates }

// IncludeRawValues reports whether per-source raw values are returned.
func (r *Request) IncludeRawValues() bool { return r.p.IncludeRawValues }

// SearchRawValues reports whether value filters target raw values.
func (r *Request) SearchRawValues() bool { return r.p.SearchRawValues }

// Size returns the requested number of records.
func (r *Request) Size() int { return r.p.Size }

// Offset returns the pagination offset.
func (r *Request) Offset() int { return r.p.Offset }

// Sort returns the sort directives.
func (r *Request) Sort() []Sort { return r.p.Sort }

// Aggregations returns the explicit aggregation spec, or nil.
func (r *Request) Aggregations() map[string]any { return r.p.Aggregations }

// HasAggregations reports whether an explicit aggregation was requested.
func (r *Request) HasAggregations() bool { return len(r.p.Aggregations) > 0 }

// ProgressID returns the client-supplied progress-tracking id.
func (r *Request) ProgressID() string { return r.p.ProgressID }

// WithProgressID returns a copy carrying id.
func (r Request) WithProgressID(id string) Request {
	r.p.ProgressID = id
	return r
}

// WithSize returns a copy with size and offset replaced.
func (r Request) WithSize(size, offset int) Request {
	r.p.Size = size
	r.p.Offset = offset
	return r
}

// AllFields returns requested and optional fields with subset suffixes
// removed, deduplicated.
func (r *Request) AllFields() []string {
	var out []string
	for _, f := range slices.Concat(r.p.Fields, r.p.OptionalFields) {
		base, _ := SplitSubset(f)
		if !slices.Contains(out, base) {
			out = append(out, base)
		}
	}
	return out
}

// IsOptional reports whether base is projected only optionally.
func (r *Request) IsOptional(base string) bool {
	for _, f := range r.p.Fields {
		if b, _ := SplitSubset(f); b == base {
			return false
		}
	}
	return true
}

// SplitSubset splits "field:subset" into its parts.
func SplitSubset(field string) (base, subset string) {
	base, subset, _ = strings.Cut(field, ":")
	return base, subset
}
