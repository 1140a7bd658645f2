package chi

import (
	"fmt"
	"net/url"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
)

// SearchParams defines parameters for search and count. List parameters are
// comma separated in query strings and arrays in JSON bodies.
type SearchParams struct {
	Query                *string        `json:"query,omitempty"`
	Result               *string        `json:"result,omitempty"`
	Taxonomy             *string        `json:"taxonomy,omitempty"`
	Fields               *[]string      `json:"fields,omitempty"`
	OptionalFields       *[]string      `json:"optionalFields,omitempty"`
	Names                *[]string      `json:"names,omitempty"`
	Ranks                *[]string      `json:"ranks,omitempty"`
	SummaryValues        *[]string      `json:"summaryValues,omitempty"`
	MaxDepth             *int           `json:"maxDepth,omitempty"`
	Lca                  *string        `json:"lca,omitempty"`
	ExcludeDirect        *[]string      `json:"excludeDirect,omitempty"`
	ExcludeDescendant    *[]string      `json:"excludeDescendant,omitempty"`
	ExcludeAncestral     *[]string      `json:"excludeAncestral,omitempty"`
	ExcludeEstimated     *[]string      `json:"excludeEstimated,omitempty"`
	ExcludeMissing       *[]string      `json:"excludeMissing,omitempty"`
	ExcludeUnclassified  *bool          `json:"excludeUnclassified,omitempty"`
	ExcludeEnvironmental *bool          `json:"excludeEnvironmental,omitempty"`
	IncludeEstimates     *bool          `json:"includeEstimates,omitempty"`
	IncludeRawValues     *bool          `json:"includeRawValues,omitempty"`
	SearchRawValues      *bool          `json:"searchRawValues,omitempty"`
	Size                 *int           `json:"size,omitempty"`
	Offset               *int           `json:"offset,omitempty"`
	SortBy               *[]string      `json:"sortBy,omitempty"`
	SortOrder            *[]string      `json:"sortOrder,omitempty"`
	ProgressID           *string        `json:"progressId,omitempty"`
	Aggregations         map[string]any `json:"aggregations,omitempty"`
}

// bindSearchParams binds query string parameters. Aggregations are only
// accepted in request bodies.
func bindSearchParams(q url.Values) (SearchParams, error) {
	var p SearchParams
	// Lists split on commas; scalars bind whole so queries may contain commas.
	binds := []struct {
		name string
		dest any
		list bool
	}{
		{"query", &p.Query, false},
		{"result", &p.Result, false},
		{"taxonomy", &p.Taxonomy, false},
		{"fields", &p.Fields, true},
		{"optionalFields", &p.OptionalFields, true},
		{"names", &p.Names, true},
		{"ranks", &p.Ranks, true},
		{"summaryValues", &p.SummaryValues, true},
		{"maxDepth", &p.MaxDepth, false},
		{"lca", &p.Lca, false},
		{"excludeDirect", &p.ExcludeDirect, true},
		{"excludeDescendant", &p.ExcludeDescendant, true},
		{"excludeAncestral", &p.ExcludeAncestral, true},
		{"excludeEstimated", &p.ExcludeEstimated, true},
		{"excludeMissing", &p.ExcludeMissing, true},
		{"excludeUnclassified", &p.ExcludeUnclassified, false},
		{"excludeEnvironmental", &p.ExcludeEnvironmental, false},
		{"includeEstimates", &p.IncludeEstimates, false},
		{"includeRawValues", &p.IncludeRawValues, false},
		{"searchRawValues", &p.SearchRawValues, false},
		{"size", &p.Size, false},
		{"offset", &p.Offset, false},
		{"sortBy", &p.SortBy, true},
		{"sortOrder", &p.SortOrder, true},
		{"progressId", &p.ProgressID, false},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", !b.list, false, b.name, q, b.dest); err != nil {
			return SearchParams{}, fmt.Errorf("invalid format for parameter %s: %w", b.name, err)
		}
	}
	return p, nil
}

// toRequest fills configured defaults and validates p against the size limit.
func (p SearchParams) toRequest(opts Options) (request.Request, error) {
	rp := request.Params{
		Category:         deref(p.Result),
		Taxonomy:         deref(p.Taxonomy),
		Query:            deref(p.Query),
		Fields:           deref(p.Fields),
		OptionalFields:   deref(p.OptionalFields),
		NameClasses:      deref(p.Names),
		Ranks:            deref(p.Ranks),
		SummaryValues:    deref(p.SummaryValues),
		MaxDepth:         p.MaxDepth,
		LCA:              deref(p.Lca),
		IncludeEstimates: deref(p.IncludeEstimates),
		IncludeRawValues: deref(p.IncludeRawValues),
		SearchRawValues:  deref(p.SearchRawValues),
		Size:             deref(p.Size),
		Offset:           deref(p.Offset),
		Aggregations:     p.Aggregations,
		ProgressID:       deref(p.ProgressID),
		Exclusions: request.Exclusions{
			Direct:        deref(p.ExcludeDirect),
			Descendant:    deref(p.ExcludeDescendant),
			Ancestral:     deref(p.ExcludeAncestral),
			Estimated:     deref(p.ExcludeEstimated),
			Missing:       deref(p.ExcludeMissing),
			Unclassified:  deref(p.ExcludeUnclassified),
			Environmental: deref(p.ExcludeEnvironmental),
		},
	}
	if rp.Taxonomy == "" {
		rp.Taxonomy = opts.DefaultTaxonomy
	}
	if p.Size == nil {
		rp.Size = opts.DefaultSize
	}
	if opts.MaxSize > 0 && rp.Size > opts.MaxSize {
		return request.Request{}, fmt.Errorf("size too large (max %d)", opts.MaxSize)
	}

	sortBy, sortOrder := deref(p.SortBy), deref(p.SortOrder)
	if len(sortOrder) > len(sortBy) {
		return request.Request{}, fmt.Errorf("sortOrder has %d entries for %d sortBy fields", len(sortOrder), len(sortBy))
	}
	for i, by := range sortBy {
		s := request.Sort{By: by}
		if i < len(sortOrder) {
			s.Order = request.Order(sortOrder[i])
		}
		rp.Sort = append(rp.Sort, s)
	}

	req, err := request.New(rp)
	if err != nil {
		return request.Request{}, fmt.Errorf("build search request: %w", err)
	}
	return req, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
