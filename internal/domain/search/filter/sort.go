package filter

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
)

var (
	coreSortFields = []string{"_score", "taxon_id", "scientific_name", "taxon_rank", "parent"}

	// Ranks is the taxonomic rank vocabulary recognised as sort keys.
	Ranks = []string{
		"superkingdom", "kingdom", "phylum", "class", "order", "family",
		"subfamily", "tribe", "genus", "species", "subspecies",
	}

	// NameClasses is the name-class vocabulary recognised as sort keys.
	NameClasses = []string{
		"scientific name", "common name", "genbank common name", "synonym",
		"tolid prefix", "authority", "equivalent name",
	}
)

func (a *Assembler) sortClauses(req *request.Request) ([]Clause, error) {
	out := make([]Clause, 0, len(req.Sort()))
	for _, s := range req.Sort() {
		c, err := a.sortClause(req, s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// sortClause resolves a sort key as a core field, an attribute ("field" or
// "field:stat"), a rank or a name class, in that order.
func (a *Assembler) sortClause(req *request.Request, s request.Sort) (Clause, error) {
	by, stat := request.SplitSubset(s.By)
	order := string(s.Order)

	if slices.Contains(coreSortFields, by) || by == a.category+"_id" {
		return Clause{by: map[string]any{"order": order}}, nil
	}
	if attr, ok := a.lookup(by); ok {
		mode := "min"
		if s.Order == request.Desc {
			mode = "max"
		}
		return Clause{PathAttributes + "." + statField(attr, stat): map[string]any{
			"order": order,
			"mode":  mode,
			"nested": map[string]any{
				"path":   PathAttributes,
				"filter": Term(fieldKey, attr.Name()),
			},
		}}, nil
	}
	if slices.Contains(Ranks, by) || slices.Contains(req.Ranks(), by) {
		return Clause{PathLineage + ".scientific_name": map[string]any{
			"order": order,
			"nested": map[string]any{
				"path":   PathLineage,
				"filter": Term(PathLineage+".taxon_rank", by),
			},
		}}, nil
	}
	if slices.Contains(NameClasses, by) || slices.Contains(req.NameClasses(), by) {
		return Clause{PathNames + ".name": map[string]any{
			"order": order,
			"nested": map[string]any{
				"path":   PathNames,
				"filter": Term(PathNames+".class", by),
			},
		}}, nil
	}
	if _, ok := a.identifierAttr(by); ok {
		return Clause{by: map[string]any{"order": order}}, nil
	}
	return nil, fmt.Errorf("sort field %q: %w", s.By, domain.ErrUnknownField)
}
