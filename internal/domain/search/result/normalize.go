package result

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kailas-cloud/taxdex/internal/domain/schema"
	"github.com/kailas-cloud/taxdex/internal/domain/search/filter"
)

// Lookup resolves attribute metadata by name.
type Lookup interface {
	Lookup(name string) (schema.Attribute, bool)
}

// Options controls how hits are normalized.
type Options struct {
	// Fields lists the attributes to project, optionally "field:subset".
	// Empty projects every attribute present on the hit.
	Fields           []string
	Attributes       Lookup
	SummaryValues    []string
	IncludeRawValues bool
	// LCA truncates lineages at this ancestor, inclusive.
	LCA string
}

var statSubsets = []string{"min", "max", "mean", "median", "mode", "count", "length", "range"}

// NormalizeAll normalizes every hit of env.
func NormalizeAll(env Envelope, opts Options) []Record {
	out := make([]Record, 0, len(env.Hits))
	for _, h := range env.Hits {
		out = append(out, Normalize(h, opts))
	}
	return out
}

// Normalize converts one raw hit into a Record.
func Normalize(hit RawHit, opts Options) Record {
	rec := Record{
		ID:     hit.ID,
		Index:  hit.Index,
		Score:  hit.Score,
		Fields: coreFields(hit.Source),
	}

	entries := attributeEntries(hit)
	fields := opts.Fields
	if len(fields) == 0 {
		fields = slices.Sorted(maps.Keys(entries))
	}
	for _, f := range fields {
		key, av, ok := resolveField(hit, entries, f, opts)
		if !ok {
			continue
		}
		if rec.Attributes == nil {
			rec.Attributes = make(map[string]AttributeValue)
		}
		rec.Attributes[key] = av
	}

	rec.Names = names(hit.InnerHits[filter.InnerHitNames])
	rec.Ranks = ranks(hit.InnerHits[filter.InnerHitRanks])
	rec.Lineage = lineage(hit.Source, opts.LCA)
	return rec
}

func coreFields(source map[string]any) map[string]any {
	out := make(map[string]any, len(source))
	for k, v := range source {
		switch k {
		case filter.PathAttributes, filter.PathLineage, filter.PathNames:
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// attributeEntries indexes nested attribute documents by key. Plain inner
// hits override the record source; subset-tagged inner hits are kept apart.
func attributeEntries(hit RawHit) map[string]map[string]any {
	out := make(map[string]map[string]any)
	if list, ok := hit.Source[filter.PathAttributes].([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				if k, ok := m["key"].(string); ok {
					out[k] = m
				}
			}
		}
	}
	for name, docs := range hit.InnerHits {
		if strings.Contains(name, ":") {
			continue
		}
		for _, d := range docs {
			if k, ok := d["key"].(string); ok {
				out[k] = d
			}
		}
	}
	return out
}

// resolveField projects one requested field. A subset is resolved from a
// matching tagged inner hit, then by provenance class, then as a summary
// statistic.
func resolveField(hit RawHit, entries map[string]map[string]any, field string, opts Options) (string, AttributeValue, bool) {
	base, subset, _ := strings.Cut(field, ":")
	if opts.Attributes == nil {
		return "", AttributeValue{}, false
	}
	attr, ok := opts.Attributes.Lookup(base)
	if !ok {
		return "", AttributeValue{}, false
	}
	name := attr.Name()
	entry := entries[name]

	if subset == "" {
		av, ok := decodeEntry(entry, attr, opts)
		return name, av, ok
	}
	key := name + ":" + subset

	if docs := hit.InnerHits[key]; len(docs) > 0 {
		av, ok := decodeEntry(docs[0], attr, opts)
		return key, av, ok
	}
	if sources, isClass := filter.SubsetSources(subset); isClass {
		if !intersects(sourcesOf(entry), sources) {
			return "", AttributeValue{}, false
		}
		av, ok := decodeEntry(entry, attr, opts)
		return key, av, ok
	}
	if slices.Contains(statSubsets, subset) && entry != nil {
		stat := subset
		if attr.Type() == schema.Date {
			stat = dateStat(stat)
		}
		v, err := Decode(statType(attr, stat), entry[stat])
		if err != nil {
			return "", AttributeValue{}, false
		}
		av, _ := decodeEntry(entry, attr, opts)
		av.Value = v
		return key, av, true
	}
	return "", AttributeValue{}, false
}

// decodeEntry is the single typed decoder for nested attribute documents.
func decodeEntry(entry map[string]any, attr schema.Attribute, opts Options) (AttributeValue, bool) {
	if entry == nil {
		return AttributeValue{}, false
	}
	v, err := Decode(attr.Type(), entry[attr.ValueField()])
	if err != nil {
		return AttributeValue{}, false
	}
	av := AttributeValue{Value: v}
	av.IsPrimary = truthy(entry["is_primary_value"])
	av.AggregationSource, av.HasDescendants = collapseSources(sourcesOf(entry))
	av.AggregationMethod, _ = entry["aggregation_method"].(string)
	if c, err := toFloat(entry["count"]); err == nil {
		av.Count = int(c)
	}
	for _, stat := range opts.SummaryValues {
		if attr.Type() == schema.Date {
			stat = dateStat(stat)
		}
		if sv, err := Decode(statType(attr, stat), entry[stat]); err == nil {
			if av.Stats == nil {
				av.Stats = make(map[string]Value)
			}
			av.Stats[stat] = sv
		}
	}
	if opts.IncludeRawValues {
		av.RawValues = rawValues(entry["values"], attr)
	}
	return av, true
}

func rawValues(raw any, attr schema.Attribute) []RawValue {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]RawValue, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		v, err := Decode(attr.Type(), m[attr.ValueField()])
		if err != nil {
			continue
		}
		src, _ := m["source"].(string)
		out = append(out, RawValue{Value: v, Source: src})
	}
	return out
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		return b == "true"
	}
	return false
}

func sourcesOf(entry map[string]any) []string {
	switch v := entry["aggregation_source"].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, fmt.Sprint(s))
		}
		return out
	}
	return nil
}

// collapseSources reports direct whenever direct evidence exists, noting
// whether descendants also contributed.
func collapseSources(sources []string) (string, bool) {
	if slices.Contains(sources, filter.SourceDirect) {
		return filter.SourceDirect, slices.Contains(sources, filter.SourceDescendant)
	}
	return strings.Join(sources, ","), false
}

func intersects(a, b []string) bool {
	for _, s := range a {
		if slices.Contains(b, s) {
			return true
		}
	}
	return false
}

func dateStat(stat string) string {
	switch stat {
	case "min":
		return "from"
	case "max":
		return "to"
	}
	return stat
}

func statType(attr schema.Attribute, stat string) schema.ProcessedType {
	switch stat {
	case "count", "length":
		return schema.Integer
	case "mean", "median", "range":
		if attr.Type().IsNumeric() {
			return schema.Float
		}
	}
	return attr.Type()
}

func names(docs []map[string]any) map[string]NameHit {
	if len(docs) == 0 {
		return nil
	}
	out := make(map[string]NameHit, len(docs))
	for _, d := range docs {
		class, _ := d["class"].(string)
		class = strings.ToLower(class)
		if _, seen := out[class]; seen || class == "" {
			continue
		}
		name, _ := d["name"].(string)
		src, _ := d["source"].(string)
		out[class] = NameHit{Name: name, Class: class, Source: src}
	}
	return out
}

func ranks(docs []map[string]any) map[string]LineageNode {
	if len(docs) == 0 {
		return nil
	}
	out := make(map[string]LineageNode, len(docs))
	for _, d := range docs {
		n := lineageNode(d)
		if _, seen := out[n.TaxonRank]; !seen && n.TaxonRank != "" {
			out[n.TaxonRank] = n
		}
	}
	return out
}

// lineage returns ancestors nearest first, truncated at lca inclusive.
func lineage(source map[string]any, lca string) []LineageNode {
	list, ok := source[filter.PathLineage].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	nodes := make([]LineageNode, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			nodes = append(nodes, lineageNode(m))
		}
	}
	slices.SortStableFunc(nodes, func(a, b LineageNode) int { return a.NodeDepth - b.NodeDepth })
	if lca == "" {
		return nodes
	}
	for i, n := range nodes {
		if n.TaxonID == lca || strings.EqualFold(n.ScientificName, lca) {
			return nodes[:i+1]
		}
	}
	return nodes
}

func lineageNode(m map[string]any) LineageNode {
	n := LineageNode{}
	if id, ok := m["taxon_id"]; ok && id != nil {
		n.TaxonID = fmt.Sprint(id)
	}
	n.ScientificName, _ = m["scientific_name"].(string)
	n.TaxonRank, _ = m["taxon_rank"].(string)
	if d, err := toFloat(m["node_depth"]); err == nil {
		n.NodeDepth = int(d)
	}
	return n
}
