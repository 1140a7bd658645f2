package taxdex

import (
	"github.com/kailas-cloud/taxdex/internal/domain/search/mode"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
	"github.com/kailas-cloud/taxdex/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/taxdex/internal/usecase/search"
)

// Sort orders results by a field, attribute ("field:stat"), rank or name class.
type Sort struct {
	By         string
	Descending bool
}

// SearchOptions narrows a search. The zero value searches taxa in the
// client's default taxonomy.
type SearchOptions struct {
	// Result is the record category: taxon, assembly, sample, feature or file.
	Result   string
	Taxonomy string
	// Fields to return. Fields named here are required unless also listed
	// in OptionalFields.
	Fields         []string
	OptionalFields []string
	Names          []string
	Ranks          []string
	SummaryValues  []string
	MaxDepth       *int
	LCA            string

	ExcludeDirect     []string
	ExcludeDescendant []string
	ExcludeAncestral  []string
	ExcludeEstimated  []string
	ExcludeMissing    []string

	IncludeEstimates bool
	IncludeRawValues bool
	SearchRawValues  bool

	Size   int
	Offset int
	Sort   []Sort

	// ProgressID names a streamed search so Client.Progress can report it.
	ProgressID string
}

func (o *SearchOptions) params() request.Params {
	p := request.Params{
		Category:       o.Result,
		Taxonomy:       o.Taxonomy,
		Fields:         o.Fields,
		OptionalFields: o.OptionalFields,
		NameClasses:    o.Names,
		Ranks:          o.Ranks,
		SummaryValues:  o.SummaryValues,
		MaxDepth:       o.MaxDepth,
		LCA:            o.LCA,
		Exclusions: request.Exclusions{
			Direct:     o.ExcludeDirect,
			Descendant: o.ExcludeDescendant,
			Ancestral:  o.ExcludeAncestral,
			Estimated:  o.ExcludeEstimated,
			Missing:    o.ExcludeMissing,
		},
		IncludeEstimates: o.IncludeEstimates,
		IncludeRawValues: o.IncludeRawValues,
		SearchRawValues:  o.SearchRawValues,
		Size:             o.Size,
		Offset:           o.Offset,
		ProgressID:       o.ProgressID,
	}
	for _, s := range o.Sort {
		order := request.Asc
		if s.Descending {
			order = request.Desc
		}
		p.Sort = append(p.Sort, request.Sort{By: s.By, Order: order})
	}
	return p
}

// Result is the outcome of a search.
type Result struct {
	Success bool
	Error   string
	// Total is the number of matching records, which may exceed len(Records).
	Total int64
	Took  int64
	// Streamed reports whether the search was read with a scroll.
	Streamed     bool
	ProgressID   string
	Records      []Record
	Aggregations map[string]any
}

// Record is one matching taxon, assembly, sample, feature or file.
type Record struct {
	ID    string
	Index string
	Score float64
	// Fields holds the record's core fields, e.g. scientific_name.
	Fields     map[string]any
	Attributes map[string]Attribute
	// Names maps a name class to the record's name of that class.
	Names   map[string]string
	Ranks   map[string]Taxon
	Lineage []Taxon
}

// Attribute is an attribute value with its provenance.
type Attribute struct {
	// Value is float64, int64, string, []string or "lat,lon".
	Value             any
	IsPrimary         bool
	AggregationSource string
	AggregationMethod string
	HasDescendants    bool
	Count             int
	Stats             map[string]any
	RawValues         []RawValue
}

// RawValue is one per-source value behind an aggregated attribute.
type RawValue struct {
	Value  any
	Source string
}

// Taxon is an ancestor in a record's lineage.
type Taxon struct {
	ID    string
	Name  string
	Rank  string
	Depth int
}

// Progress reports a streamed search.
type Progress struct {
	Current  int64
	Total    int64
	Complete bool
	Percent  float64
}

// Plan is the Elasticsearch request a search compiles to.
type Plan struct {
	Index    string
	Streamed bool
	// Bodies holds one request body per search, more than one when the
	// query names several terms.
	Bodies []map[string]any
}

func fromResponse(resp *searchuc.Response) *Result {
	out := &Result{
		Success:      resp.Status.Success,
		Error:        resp.Status.Error,
		Total:        resp.Status.Total,
		Took:         resp.Status.Took,
		Streamed:     resp.Mode == mode.Streamed,
		ProgressID:   resp.ProgressID,
		Aggregations: resp.Aggregations,
		Records:      make([]Record, 0, len(resp.Records)),
	}
	for i := range resp.Records {
		out.Records = append(out.Records, fromRecord(&resp.Records[i]))
	}
	return out
}

func fromRecord(r *result.Record) Record {
	rec := Record{
		ID:     r.ID,
		Index:  r.Index,
		Score:  r.Score,
		Fields: r.Fields,
	}
	if len(r.Attributes) > 0 {
		rec.Attributes = make(map[string]Attribute, len(r.Attributes))
		for name, a := range r.Attributes {
			rec.Attributes[name] = fromAttribute(a)
		}
	}
	if len(r.Names) > 0 {
		rec.Names = make(map[string]string, len(r.Names))
		for class, n := range r.Names {
			rec.Names[class] = n.Name
		}
	}
	if len(r.Ranks) > 0 {
		rec.Ranks = make(map[string]Taxon, len(r.Ranks))
		for rank, n := range r.Ranks {
			rec.Ranks[rank] = fromLineage(n)
		}
	}
	for _, n := range r.Lineage {
		rec.Lineage = append(rec.Lineage, fromLineage(n))
	}
	return rec
}

func fromAttribute(a result.AttributeValue) Attribute {
	out := Attribute{
		Value:             anyOf(a.Value),
		IsPrimary:         a.IsPrimary,
		AggregationSource: a.AggregationSource,
		AggregationMethod: a.AggregationMethod,
		HasDescendants:    a.HasDescendants,
		Count:             a.Count,
	}
	if len(a.Stats) > 0 {
		out.Stats = make(map[string]any, len(a.Stats))
		for k, v := range a.Stats {
			out.Stats[k] = anyOf(v)
		}
	}
	for _, rv := range a.RawValues {
		out.RawValues = append(out.RawValues, RawValue{Value: anyOf(rv.Value), Source: rv.Source})
	}
	return out
}

func fromLineage(n result.LineageNode) Taxon {
	return Taxon{ID: n.TaxonID, Name: n.ScientificName, Rank: n.TaxonRank, Depth: n.NodeDepth}
}

func fromPlan(p *searchuc.Plan) *Plan {
	return &Plan{Index: p.Index, Streamed: p.Mode == mode.Streamed, Bodies: p.Bodies}
}

func anyOf(v result.Value) any {
	if v == nil {
		return nil
	}
	return v.Any()
}
