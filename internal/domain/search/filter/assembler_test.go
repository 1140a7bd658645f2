package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/query"
	"github.com/kailas-cloud/taxdex/internal/domain/schema"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
)

func testSchemas() (*schema.Set, *schema.Set) {
	attrs := schema.NewSet("taxon", "ncbi", schema.Attributes, []schema.Attribute{
		schema.NewAttribute(schema.Spec{
			Group: "taxon", Name: "genome_size", Type: "long",
			Bins: &schema.Bins{Min: 6, Max: 11, Count: 10, Scale: "log10"},
		}),
		schema.NewAttribute(schema.Spec{Group: "taxon", Name: "mass", Type: "double"}),
		schema.NewAttribute(schema.Spec{
			Group: "taxon", Name: "c_value", Type: "half_float", Synonyms: []string{"c_val"},
		}),
		schema.NewAttribute(schema.Spec{Group: "taxon", Name: "sex_determination", Type: "keyword"}),
		schema.NewAttribute(schema.Spec{
			Group: "taxon", Name: "assembly_level", Type: "keyword",
			Summary: []string{"enum"},
			Enum:    []string{"complete genome", "chromosome", "scaffold", "contig"},
		}),
	})
	ids := schema.NewSet("taxon", "ncbi", schema.Identifiers, []schema.Attribute{
		schema.NewAttribute(schema.Spec{Group: "taxon", Name: "ott_id", Type: "keyword"}),
	})
	return attrs, ids
}

// assemble compiles q and lowers it, returning the body as decoded JSON.
func assemble(t *testing.T, q string, p request.Params) map[string]any {
	t.Helper()
	body, err := assembleBody(q, p)
	require.NoError(t, err)
	return roundTrip(t, body)
}

func assembleBody(q string, p request.Params) (Body, error) {
	attrs, ids := testSchemas()
	p.Query = q
	req, err := request.New(p)
	if err != nil {
		return nil, err
	}
	compiled, err := query.NewCompiler(req.Category(), attrs, ids).Compile(q)
	if err != nil {
		return nil, err
	}
	return NewAssembler(req.Category(), attrs, ids).Assemble(&req, compiled)
}

func roundTrip(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func parse(t *testing.T, s string) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func rootBool(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	q, ok := body["query"].(map[string]any)
	require.True(t, ok, "query missing")
	b, ok := q["bool"].(map[string]any)
	require.True(t, ok, "query is not a bool clause: %v", q)
	return b
}

func clauses(b map[string]any, key string) []any {
	list, _ := b[key].([]any)
	return list
}

func TestAssemble_GenomeSizeInMammalia(t *testing.T) {
	body := assemble(t, "genome_size>1000000 AND tax_tree(Mammalia)", request.Params{})
	filters := clauses(rootBool(t, body), "filter")

	assert.Contains(t, filters, parse(t, `{"nested": {"path": "attributes", "query": {"bool": {"filter": [
		{"term": {"attributes.key": "genome_size"}},
		{"terms": {"attributes.aggregation_source": ["direct", "descendant"]}},
		{"range": {"attributes.long_value": {"gt": 1000000}}}
	]}}}}`))

	assert.Contains(t, filters, parse(t, `{"bool": {"minimum_should_match": 1, "should": [
		{"term": {"taxon_id": "Mammalia"}},
		{"term": {"scientific_name": {"value": "Mammalia", "case_insensitive": true}}},
		{"nested": {"path": "lineage", "query": {"bool": {"filter": [
			{"bool": {"minimum_should_match": 1, "should": [
				{"term": {"lineage.taxon_id": "Mammalia"}},
				{"term": {"lineage.scientific_name": {"value": "Mammalia", "case_insensitive": true}}}
			]}}
		]}}}}
	]}}`))

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "node_depth")
}

func TestAssemble_TreeWithDepth(t *testing.T) {
	body := assemble(t, "tax_tree(Mammalia) AND tax_depth(2)", request.Params{})
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lineage.node_depth":{"lte":2}`)
}

func TestAssemble_MaxDepthParameter(t *testing.T) {
	depth := 3
	body := assemble(t, "tax_tree(Mammalia)", request.Params{MaxDepth: &depth})
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lineage.node_depth":{"lte":3}`)
}

func TestAssemble_TaxonListWithNegation(t *testing.T) {
	body := assemble(t, "tax_eq(9606,!10090) AND tax_rank(species)", request.Params{})
	b := rootBool(t, body)

	assert.Contains(t, clauses(b, "filter"), parse(t, `{"bool": {"minimum_should_match": 1, "should": [
		{"term": {"taxon_id": "9606"}},
		{"term": {"scientific_name": {"value": "9606", "case_insensitive": true}}}
	]}}`))
	assert.Contains(t, clauses(b, "filter"), parse(t, `{"term": {"taxon_rank": "species"}}`))
	assert.Contains(t, clauses(b, "must_not"), parse(t, `{"bool": {"minimum_should_match": 1, "should": [
		{"term": {"taxon_id": "10090"}},
		{"term": {"scientific_name": {"value": "10090", "case_insensitive": true}}}
	]}}`))
}

func TestAssemble_TaxNamePrefix(t *testing.T) {
	body := assemble(t, "tax_name(Homo*)", request.Params{})
	assert.Contains(t, clauses(rootBool(t, body), "filter"), parse(t, `{"bool": {"minimum_should_match": 1, "should": [
		{"term": {"taxon_id": "Homo*"}},
		{"nested": {"path": "taxon_names", "query":
			{"prefix": {"taxon_names.name": {"value": "Homo", "case_insensitive": true}}}}}
	]}}`))
}

func fieldClauseJSON(name, sources string) string {
	return `{"bool": {"minimum_should_match": 2, "should": [
		{"nested": {"path": "attributes", "query": {"bool": {"filter": [
			{"term": {"attributes.key": "` + name + `"}},
			{"terms": {"attributes.aggregation_source": ` + sources + `}}
		]}}}},
		{"nested": {"path": "attributes",
			"query": {"bool": {"filter": [{"term": {"attributes.key": "` + name + `"}}]}},
			"inner_hits": {"name": "` + name + `", "size": 1, "_source": {"excludes": ["attributes.values"]}}}}
	]}}`
}

func TestAssemble_OptionalFieldGoesToShould(t *testing.T) {
	body := assemble(t, "", request.Params{Fields: []string{"c_value"}})
	b := rootBool(t, body)

	assert.Contains(t, clauses(b, "should"), parse(t, fieldClauseJSON("c_value", `["direct", "descendant"]`)))
	assert.Empty(t, clauses(b, "filter"))
	assert.Equal(t, float64(0), b["minimum_should_match"])
}

func TestAssemble_RequiredFieldGoesToFilter(t *testing.T) {
	tests := []struct {
		name    string
		params  request.Params
		sources string
	}{
		{
			name:    "exclude missing",
			params:  request.Params{Fields: []string{"c_value"}, Exclusions: request.Exclusions{Missing: []string{"c_value"}}},
			sources: `["direct", "descendant"]`,
		},
		{
			name:    "exclude direct",
			params:  request.Params{Fields: []string{"c_value"}, Exclusions: request.Exclusions{Direct: []string{"c_value"}}},
			sources: `["descendant"]`,
		},
		{
			name: "exclude ancestral with estimates",
			params: request.Params{
				Fields: []string{"c_value"}, IncludeEstimates: true,
				Exclusions: request.Exclusions{Ancestral: []string{"c_value"}},
			},
			sources: `["direct", "descendant"]`,
		},
		{
			name: "exclude estimated",
			params: request.Params{
				Fields: []string{"c_value"}, IncludeEstimates: true,
				Exclusions: request.Exclusions{Estimated: []string{"c_value"}},
			},
			sources: `["direct"]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := assemble(t, "", tt.params)
			assert.Contains(t, clauses(rootBool(t, body), "filter"), parse(t, fieldClauseJSON("c_value", tt.sources)))
		})
	}
}

func TestAssemble_IncludeRawValuesKeepsValues(t *testing.T) {
	body := assemble(t, "", request.Params{Fields: []string{"mass"}, IncludeRawValues: true})
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"excludes":["attributes.values"]`)
}

func TestAssemble_SubsetInnerHit(t *testing.T) {
	body := assemble(t, "", request.Params{Fields: []string{"mass:estimate"}})
	assert.Contains(t, clauses(rootBool(t, body), "should"), parse(t, `{"nested": {"path": "attributes",
		"query": {"bool": {"filter": [
			{"term": {"attributes.key": "mass"}},
			{"terms": {"attributes.aggregation_source": ["descendant", "ancestor"]}}
		]}},
		"inner_hits": {"name": "mass:estimate", "size": 1, "_source": {"excludes": ["attributes.values"]}}}}`))
}

func TestAssemble_NotEqualExcludesRange(t *testing.T) {
	body := assemble(t, "mass!=5", request.Params{})
	assert.Contains(t, clauses(rootBool(t, body), "filter"), parse(t, `{"nested": {"path": "attributes", "query": {"bool": {
		"filter": [
			{"term": {"attributes.key": "mass"}},
			{"terms": {"attributes.aggregation_source": ["direct", "descendant"]}}
		],
		"must_not": [{"range": {"attributes.double_value": {"gte": 5, "lte": 5}}}]
	}}}}`))
}

func TestAssemble_SummaryStatTargetsStatField(t *testing.T) {
	body := assemble(t, "min(mass)>=2 AND max(mass)<9", request.Params{})
	filters := clauses(rootBool(t, body), "filter")
	raw, err := json.Marshal(filters)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"attributes.min":{"gte":2}`)
	assert.Contains(t, string(raw), `"attributes.max":{"lt":9}`)
}

func TestAssemble_SearchRawValues(t *testing.T) {
	body := assemble(t, "mass<3", request.Params{SearchRawValues: true})
	assert.Contains(t, clauses(rootBool(t, body), "filter"), parse(t, `{"nested": {"path": "attributes", "query": {"bool": {"filter": [
		{"term": {"attributes.key": "mass"}},
		{"terms": {"attributes.aggregation_source": ["direct", "descendant"]}},
		{"nested": {"path": "attributes.values", "query": {"range": {"attributes.values.double_value": {"lt": 3}}}}}
	]}}}}`))
}

func TestAssemble_Keywords(t *testing.T) {
	body := assemble(t, "sex_determination=XY,ZW AND sex_determination!=haplo*", request.Params{})
	assert.Contains(t, clauses(rootBool(t, body), "filter"), parse(t, `{"nested": {"path": "attributes", "query": {"bool": {
		"filter": [
			{"term": {"attributes.key": "sex_determination"}},
			{"terms": {"attributes.aggregation_source": ["direct", "descendant"]}},
			{"terms": {"attributes.keyword_value": ["XY", "ZW"]}}
		],
		"must_not": [{"wildcard": {"attributes.keyword_value": {"value": "haplo*", "case_insensitive": true}}}]
	}}}}`))
}

func TestAssemble_OrderedKeywordRange(t *testing.T) {
	body := assemble(t, "assembly_level>=chromosome", request.Params{})
	assert.Contains(t, clauses(rootBool(t, body), "filter"), parse(t, `{"nested": {"path": "attributes", "query": {"bool": {"filter": [
		{"term": {"attributes.key": "assembly_level"}},
		{"terms": {"attributes.aggregation_source": ["direct", "descendant"]}},
		{"terms": {"attributes.keyword_value": ["complete genome", "chromosome"]}}
	]}}}}`))
}

func TestAssemble_OrderedKeywordUnknownValue(t *testing.T) {
	_, err := assembleBody("assembly_level>=plasmid", request.Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestEnumRange(t *testing.T) {
	enum := []string{"complete genome", "chromosome", "scaffold", "contig"}
	tests := []struct {
		op, value string
		want      []string
	}{
		{">", "scaffold", []string{"complete genome", "chromosome"}},
		{">=", "scaffold", []string{"complete genome", "chromosome", "scaffold"}},
		{"<", "scaffold", []string{"contig"}},
		{"<=", "Scaffold", []string{"scaffold", "contig"}},
		{">", "complete genome", []string{}},
	}
	for _, tt := range tests {
		got, err := EnumRange(enum, tt.op, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s%s", tt.op, tt.value)
	}
}

func TestAssemble_Properties(t *testing.T) {
	body := assemble(t, "ott_id=770315 AND ott_id!=1", request.Params{})
	b := rootBool(t, body)
	assert.Contains(t, clauses(b, "filter"), parse(t, `{"terms": {"ott_id": ["770315"]}}`))
	assert.Contains(t, clauses(b, "must_not"), parse(t, `{"term": {"ott_id": "1"}}`))
}

func TestAssemble_Identifiers(t *testing.T) {
	body := assemble(t, "Homo sapiens", request.Params{})
	assert.Contains(t, clauses(rootBool(t, body), "filter"), parse(t, `{"bool": {"minimum_should_match": 1, "should": [
		{"term": {"taxon_id": "Homo sapiens"}},
		{"term": {"scientific_name": {"value": "Homo sapiens", "case_insensitive": true}}},
		{"nested": {"path": "taxon_names", "query":
			{"term": {"taxon_names.name": {"value": "Homo sapiens", "case_insensitive": true}}}}}
	]}}`))
}

func TestAssemble_ExcludeBranches(t *testing.T) {
	body := assemble(t, "", request.Params{Exclusions: request.Exclusions{Unclassified: true, Environmental: true}})
	mustNot := clauses(rootBool(t, body), "must_not")
	assert.Len(t, mustNot, 4)
	assert.Contains(t, mustNot, parse(t, `{"wildcard": {"scientific_name": {"value": "*unclassified*", "case_insensitive": true}}}`))
	assert.Contains(t, mustNot, parse(t, `{"nested": {"path": "lineage", "query":
		{"wildcard": {"lineage.scientific_name": {"value": "*environmental*", "case_insensitive": true}}}}}`))
}

func TestAssemble_EmptyQueryMatchesAll(t *testing.T) {
	body := assemble(t, "", request.Params{Size: 25, Offset: 50})
	assert.Equal(t, parse(t, `{"match_all": {}}`), body["query"])
	assert.Equal(t, float64(25), body["size"])
	assert.Equal(t, float64(50), body["from"])
	assert.Equal(t, true, body["track_total_hits"])
	assert.NotContains(t, body, "aggs")
	assert.NotContains(t, body, "sort")
}

func TestAssemble_NullCounts(t *testing.T) {
	body := assemble(t, "mass>1", request.Params{Fields: []string{"c_value"}})
	assert.Equal(t, parse(t, `{"null_counts": {"filters": {"filters": {
		"c_value": {"bool": {"must_not": [{"nested": {"path": "attributes", "query": {"term": {"attributes.key": "c_value"}}}}]}},
		"mass": {"bool": {"must_not": [{"nested": {"path": "attributes", "query": {"term": {"attributes.key": "mass"}}}}]}}
	}}}}`), body["aggs"])
}

func TestAssemble_ExplicitAggregationReplacesNullCounts(t *testing.T) {
	aggs := map[string]any{"ranks": map[string]any{"terms": map[string]any{"field": "taxon_rank"}}}
	body := assemble(t, "", request.Params{Fields: []string{"mass"}, Aggregations: aggs})
	assert.Equal(t, parse(t, `{"ranks": {"terms": {"field": "taxon_rank"}}}`), body["aggs"])
}

func TestAssemble_Sort(t *testing.T) {
	tests := []struct {
		name string
		sort request.Sort
		want string
	}{
		{"core field", request.Sort{By: "scientific_name"}, `{"scientific_name": {"order": "asc"}}`},
		{"attribute desc", request.Sort{By: "genome_size", Order: request.Desc}, `{"attributes.long_value": {
			"order": "desc", "mode": "max",
			"nested": {"path": "attributes", "filter": {"term": {"attributes.key": "genome_size"}}}}}`},
		{"attribute stat", request.Sort{By: "mass:min"}, `{"attributes.min": {
			"order": "asc", "mode": "min",
			"nested": {"path": "attributes", "filter": {"term": {"attributes.key": "mass"}}}}}`},
		{"rank", request.Sort{By: "genus"}, `{"lineage.scientific_name": {
			"order": "asc",
			"nested": {"path": "lineage", "filter": {"term": {"lineage.taxon_rank": "genus"}}}}}`},
		{"name class", request.Sort{By: "common name"}, `{"taxon_names.name": {
			"order": "asc",
			"nested": {"path": "taxon_names", "filter": {"term": {"taxon_names.class": "common name"}}}}}`},
		{"identifier", request.Sort{By: "ott_id"}, `{"ott_id": {"order": "asc"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := assemble(t, "", request.Params{Sort: []request.Sort{tt.sort}})
			assert.Equal(t, []any{parse(t, tt.want)}, body["sort"])
		})
	}
}

func TestAssemble_Errors(t *testing.T) {
	_, err := assembleBody("", request.Params{Sort: []request.Sort{{By: "wingspan"}}})
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = assembleBody("", request.Params{Fields: []string{"wingspan"}})
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = assembleBody("", request.Params{
		Fields:     []string{"c_value"},
		Exclusions: request.Exclusions{Descendant: []string{"wingspan"}},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownField)
}

func TestAssemble_ExclusionsResolveSynonyms(t *testing.T) {
	tests := []struct {
		name       string
		exclusions request.Exclusions
		sources    string
	}{
		{"dash variant", request.Exclusions{Direct: []string{"c-value"}}, `["descendant"]`},
		{"declared synonym", request.Exclusions{Descendant: []string{"C_VAL"}}, `["direct"]`},
		{"missing by synonym", request.Exclusions{Missing: []string{"c_val"}}, `["direct", "descendant"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := assemble(t, "", request.Params{Fields: []string{"c-value"}, Exclusions: tt.exclusions})
			b := rootBool(t, body)

			assert.Contains(t, clauses(b, "filter"), parse(t, fieldClauseJSON("c_value", tt.sources)))
			assert.NotContains(t, clauses(b, "should"), parse(t, fieldClauseJSON("c_value", `["direct", "descendant"]`)))
		})
	}
}

func TestAssemble_Projections(t *testing.T) {
	body := assemble(t, "", request.Params{NameClasses: []string{"common name"}, Ranks: []string{"genus"}, LCA: "Hominidae"})
	should := clauses(rootBool(t, body), "should")
	assert.Contains(t, should, parse(t, `{"nested": {"path": "taxon_names",
		"query": {"terms": {"taxon_names.class": ["common name"]}},
		"inner_hits": {"name": "taxon_names", "size": 100}}}`))
	assert.Contains(t, should, parse(t, `{"nested": {"path": "lineage",
		"query": {"terms": {"lineage.taxon_rank": ["genus"]}},
		"inner_hits": {"name": "lineage", "size": 100}}}`))
	assert.Equal(t, parse(t, `{"excludes": ["attributes", "taxon_names"]}`), body["_source"])
}

func TestAssembleBatch(t *testing.T) {
	attrs, ids := testSchemas()
	req, err := request.New(request.Params{})
	require.NoError(t, err)
	compiled, err := query.NewCompiler("taxon", attrs, ids).Compile("Homo sapiens\nPan troglodytes\n")
	require.NoError(t, err)

	bodies, err := NewAssembler("taxon", attrs, ids).AssembleBatch(&req, compiled)
	require.NoError(t, err)
	require.Len(t, bodies, 2)

	raw, err := json.Marshal(bodies[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Pan troglodytes")
	assert.NotContains(t, string(raw), "Homo sapiens")
}

func TestBodyCopies(t *testing.T) {
	b := Body{"size": 10, "from": 20, "aggs": map[string]any{}}
	trimmed := b.Without("from", "aggs").With("size", 1000)
	assert.Equal(t, Body{"size": 1000}, trimmed)
	assert.Len(t, b, 3)
	assert.Equal(t, 10, b["size"])
}
