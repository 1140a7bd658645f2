package result

// Shards reports per-shard execution outcome.
type Shards struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// RawHit is one engine hit before normalization.
type RawHit struct {
	ID     string
	Index  string
	Score  float64
	Source map[string]any
	// InnerHits maps inner-hit names to the nested documents they matched.
	InnerHits map[string][]map[string]any
	Sort      []any
}

// Envelope is the mode-independent outcome of one execution.
type Envelope struct {
	ElapsedMs    int64
	TimedOut     bool
	Shards       Shards
	Total        int64
	Hits         []RawHit
	Aggregations map[string]any
}

// RawValue is one per-source value behind an aggregated attribute.
type RawValue struct {
	Value  Value  `json:"value"`
	Source string `json:"source,omitempty"`
}

// AttributeValue is a normalized attribute with its provenance.
type AttributeValue struct {
	Value             Value            `json:"value"`
	IsPrimary         bool             `json:"is_primary,omitempty"`
	AggregationSource string           `json:"aggregation_source,omitempty"`
	HasDescendants    bool             `json:"has_descendants,omitempty"`
	AggregationMethod string           `json:"aggregation_method,omitempty"`
	Count             int              `json:"count,omitempty"`
	Stats             map[string]Value `json:"stats,omitempty"`
	RawValues         []RawValue       `json:"raw_values,omitempty"`
}

// NameHit is a taxon name of one class.
type NameHit struct {
	Name   string `json:"name"`
	Class  string `json:"class"`
	Source string `json:"source,omitempty"`
}

// LineageNode is one ancestor of a record.
type LineageNode struct {
	TaxonID        string `json:"taxon_id"`
	ScientificName string `json:"scientific_name"`
	TaxonRank      string `json:"taxon_rank"`
	NodeDepth      int    `json:"node_depth"`
}

// Record is a normalized search result.
type Record struct {
	ID         string                    `json:"id"`
	Index      string                    `json:"index,omitempty"`
	Score      float64                   `json:"score"`
	Fields     map[string]any            `json:"result,omitempty"`
	Attributes map[string]AttributeValue `json:"fields,omitempty"`
	Names      map[string]NameHit        `json:"names,omitempty"`
	Ranks      map[string]LineageNode    `json:"ranks,omitempty"`
	Lineage    []LineageNode             `json:"lineage,omitempty"`
}
