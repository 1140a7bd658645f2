package filter

import (
	"strings"

	"github.com/kailas-cloud/taxdex/internal/domain/query"
)

// CategoryTaxon is the category whose records are taxa themselves.
const CategoryTaxon = "taxon"

// scopeTaxon lowers taxonomic predicates. Comma lists match any listed
// taxon; "!" entries are excluded. A tree predicate bounds lineage depth
// when a depth is given and is otherwise ancestral without limit.
func (a *Assembler) scopeTaxon(root *Bool, t query.Taxonomic, maxDepth *int) {
	depth := t.Depth
	if depth == nil {
		depth = maxDepth
	}
	if p := t.Predicate; p != nil {
		var positive []Clause
		for _, v := range splitList(p.Value) {
			if rest, ok := strings.CutPrefix(v, "!"); ok {
				root.MustNot = append(root.MustNot, taxonClause(p.Scope, strings.TrimSpace(rest), depth))
				continue
			}
			positive = append(positive, taxonClause(p.Scope, v, depth))
		}
		if len(positive) > 0 {
			root.Filter = append(root.Filter, AnyOf(positive...))
		}
	}
	if t.Rank != "" {
		root.Filter = append(root.Filter, Term("taxon_rank", t.Rank))
	}
}

func taxonClause(scope query.TaxScope, v string, depth *int) Clause {
	switch scope {
	case query.TaxName:
		return AnyOf(
			Term("taxon_id", v),
			Nested(PathNames, NameMatch(PathNames+".name", v)),
		)
	case query.TaxTree:
		return AnyOf(
			Term("taxon_id", v),
			NameMatch("scientific_name", v),
			lineageClause(v, depth),
		)
	default:
		return AnyOf(
			Term("taxon_id", v),
			TermFold("scientific_name", v),
		)
	}
}

// lineageClause matches records with v among their ancestors.
func lineageClause(v string, depth *int) Clause {
	b := &Bool{Filter: []Clause{AnyOf(
		Term(PathLineage+".taxon_id", v),
		NameMatch(PathLineage+".scientific_name", v),
	)}}
	if depth != nil {
		b.Filter = append(b.Filter, Range(PathLineage+".node_depth", map[string]any{"lte": *depth}))
	}
	return Nested(PathLineage, b.Clause())
}

// identifierClause matches a free term against record ids and names.
func (a *Assembler) identifierClause(term string) Clause {
	clauses := []Clause{
		Term("taxon_id", term),
		NameMatch("scientific_name", term),
		Nested(PathNames, NameMatch(PathNames+".name", term)),
	}
	if a.category != CategoryTaxon {
		clauses = append(clauses,
			Term(a.category+"_id", term),
			Nested("identifiers", NameMatch("identifiers.identifier", term)),
		)
	}
	return AnyOf(clauses...)
}
