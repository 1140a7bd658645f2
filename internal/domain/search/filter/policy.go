package filter

import (
	"slices"

	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
)

// Aggregation sources recorded on nested attribute entries.
const (
	SourceDirect     = "direct"
	SourceDescendant = "descendant"
	SourceAncestor   = "ancestor"
)

// Policy decides which aggregation sources satisfy a field.
//
// Every field starts from {direct, descendant}, plus ancestor when estimates
// are included. Per-field exclusion lists then remove sources: direct,
// descendant, ancestral, and estimated (descendant and ancestor together).
type Policy struct {
	includeEstimates bool
	exclusions       request.Exclusions
}

// NewPolicy builds a provenance policy.
func NewPolicy(includeEstimates bool, exclusions request.Exclusions) Policy {
	return Policy{includeEstimates: includeEstimates, exclusions: exclusions}
}

// Allowed returns the sources accepted for field, in a fixed order.
func (p Policy) Allowed(field string) []string {
	ex := p.exclusions
	estimated := slices.Contains(ex.Estimated, field)
	out := make([]string, 0, 3)
	if !slices.Contains(ex.Direct, field) {
		out = append(out, SourceDirect)
	}
	if !estimated && !slices.Contains(ex.Descendant, field) {
		out = append(out, SourceDescendant)
	}
	if p.includeEstimates && !estimated && !slices.Contains(ex.Ancestral, field) {
		out = append(out, SourceAncestor)
	}
	return out
}

// Restricted reports whether any provenance exclusion names field.
func (p Policy) Restricted(field string) bool {
	ex := p.exclusions
	return slices.Contains(ex.Direct, field) ||
		slices.Contains(ex.Descendant, field) ||
		slices.Contains(ex.Ancestral, field) ||
		slices.Contains(ex.Estimated, field)
}

// RequiresPresence reports whether records missing field are dropped.
func (p Policy) RequiresPresence(field string) bool {
	return slices.Contains(p.exclusions.Missing, field)
}

// SubsetSources maps a provenance subset selector to its sources.
// ok is false when subset names no provenance class.
func SubsetSources(subset string) (sources []string, ok bool) {
	switch subset {
	case SourceDirect:
		return []string{SourceDirect}, true
	case SourceDescendant:
		return []string{SourceDescendant}, true
	case SourceAncestor:
		return []string{SourceAncestor}, true
	case "estimate":
		return []string{SourceDescendant, SourceAncestor}, true
	}
	return nil, false
}
