package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/query"
	"github.com/kailas-cloud/taxdex/internal/domain/schema"
	"github.com/kailas-cloud/taxdex/internal/domain/search/request"
)

// Nested document paths and fields of the record mapping.
const (
	PathAttributes = "attributes"
	PathLineage    = "lineage"
	PathNames      = "taxon_names"
	PathValues     = "attributes.values"

	fieldKey    = "attributes.key"
	fieldSource = "attributes.aggregation_source"

	// InnerHitNames and InnerHitRanks name the name-class and rank projections.
	InnerHitNames = "taxon_names"
	InnerHitRanks = "lineage"

	// NullCounts is the default aggregation counting records missing each field.
	NullCounts = "null_counts"

	maxProjected = 100
)

// Assembler lowers compiled queries into engine request bodies.
type Assembler struct {
	category    string
	attributes  query.Lookup
	identifiers query.Lookup
}

// NewAssembler creates an assembler bound to one category's schemas.
// identifiers may be nil.
func NewAssembler(category string, attributes, identifiers query.Lookup) *Assembler {
	return &Assembler{category: category, attributes: attributes, identifiers: identifiers}
}

// Assemble builds the search body for req and its compiled query.
func (a *Assembler) Assemble(req *request.Request, c *query.Compiled) (Body, error) {
	exclusions, err := a.canonicalExclusions(req.Exclusions())
	if err != nil {
		return nil, err
	}
	policy := NewPolicy(req.IncludeEstimates(), exclusions)
	root := &Bool{}

	a.scopeTaxon(root, c.Taxon, req.MaxDepth())
	for _, term := range c.Identifiers {
		root.Filter = append(root.Filter, a.identifierClause(term))
	}

	fields, err := a.projectedFields(req, c)
	if err != nil {
		return nil, err
	}
	conditioned := make(map[string]bool)
	for _, f := range c.Attributes.Fields() {
		conditioned[f] = true
	}
	for _, attr := range fields {
		name := attr.Name()
		clause := fieldClause(name, policy.Allowed(name), req.IncludeRawValues())
		if conditioned[name] || policy.RequiresPresence(name) || policy.Restricted(name) {
			root.Filter = append(root.Filter, clause)
		} else {
			root.Should = append(root.Should, clause)
		}
	}
	root.Should = append(root.Should, a.subsetClauses(req)...)

	if err := a.filterAttributes(root, c.Attributes, policy, req.SearchRawValues()); err != nil {
		return nil, err
	}
	if err := a.filterProperties(root, c.Properties); err != nil {
		return nil, err
	}
	excludeBranches(root, req.Exclusions())
	root.Should = append(root.Should, projections(req)...)

	q := MatchAll()
	if !root.IsEmpty() {
		if len(root.Should) > 0 {
			root.MinimumShouldMatch = intPtr(0)
		}
		q = root.Clause()
	}

	body := Body{
		"query":            q,
		"size":             req.Size(),
		"from":             req.Offset(),
		"track_total_hits": true,
		"_source":          sourceFilter(req),
	}
	sorts, err := a.sortClauses(req)
	if err != nil {
		return nil, err
	}
	if len(sorts) > 0 {
		body["sort"] = sorts
	}
	switch {
	case req.HasAggregations():
		body["aggs"] = req.Aggregations()
	case len(fields) > 0:
		body["aggs"] = nullCounts(fields)
	}
	return body, nil
}

// AssembleBatch builds one body per multi-term line.
func (a *Assembler) AssembleBatch(req *request.Request, c *query.Compiled) ([]Body, error) {
	bodies := make([]Body, 0, len(c.MultiTerms))
	for _, term := range c.MultiTerms {
		single := &query.Compiled{
			Identifiers: []string{term},
			Attributes:  c.Attributes,
			Properties:  c.Properties,
		}
		b, err := a.Assemble(req, single)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, b)
	}
	return bodies, nil
}

// projectedFields resolves output fields in order: requested, optional, bare
// query fields, fields that must be present, then conditioned fields.
func (a *Assembler) projectedFields(req *request.Request, c *query.Compiled) ([]schema.Attribute, error) {
	names := slices.Concat(req.AllFields(), c.Fields, req.Exclusions().Missing)
	names = append(names, sortedUnique(c.Attributes.Fields())...)

	var out []schema.Attribute
	seen := make(map[string]bool)
	for _, n := range names {
		attr, ok := a.lookup(n)
		if !ok {
			return nil, fmt.Errorf("field %q: %w", n, domain.ErrUnknownField)
		}
		if seen[attr.Name()] {
			continue
		}
		seen[attr.Name()] = true
		out = append(out, attr)
	}
	return out, nil
}

// canonicalExclusions maps every per-field exclusion to its canonical
// attribute name so synonyms restrict the same field.
func (a *Assembler) canonicalExclusions(ex request.Exclusions) (request.Exclusions, error) {
	var err error
	for _, list := range []*[]string{&ex.Direct, &ex.Descendant, &ex.Ancestral, &ex.Estimated, &ex.Missing} {
		if *list, err = a.canonicalNames(*list); err != nil {
			return request.Exclusions{}, err
		}
	}
	return ex, nil
}

func (a *Assembler) canonicalNames(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		attr, ok := a.lookup(n)
		if !ok {
			return nil, fmt.Errorf("excluded field %q: %w", n, domain.ErrUnknownField)
		}
		if !slices.Contains(out, attr.Name()) {
			out = append(out, attr.Name())
		}
	}
	return out, nil
}

func (a *Assembler) lookup(name string) (schema.Attribute, bool) {
	if a.attributes == nil {
		return schema.Attribute{}, false
	}
	return a.attributes.Lookup(name)
}

func sortedUnique(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// fieldClause requires an attribute entry for name whose source is allowed,
// and projects it as an inner hit in the same nested query.
func fieldClause(name string, allowed []string, includeRaw bool) Clause {
	provenance := Nested(PathAttributes, (&Bool{Filter: []Clause{
		Term(fieldKey, name),
		Terms(fieldSource, allowed),
	}}).Clause())
	projection := NestedInner(PathAttributes,
		(&Bool{Filter: []Clause{Term(fieldKey, name)}}).Clause(),
		innerHits(name, includeRaw))
	return (&Bool{
		Should:             []Clause{provenance, projection},
		MinimumShouldMatch: intPtr(2),
	}).Clause()
}

func innerHits(name string, includeRaw bool) map[string]any {
	ih := map[string]any{"name": name, "size": 1}
	if !includeRaw {
		ih["_source"] = map[string]any{"excludes": []string{PathValues}}
	}
	return ih
}

// subsetClauses adds optional inner hits tagged "field:subset" for
// provenance subset selectors.
func (a *Assembler) subsetClauses(req *request.Request) []Clause {
	var out []Clause
	for _, f := range slices.Concat(req.Fields(), req.OptionalFields()) {
		base, subset := request.SplitSubset(f)
		sources, ok := SubsetSources(subset)
		if !ok {
			continue
		}
		attr, found := a.lookup(base)
		if !found {
			continue
		}
		q := (&Bool{Filter: []Clause{
			Term(fieldKey, attr.Name()),
			Terms(fieldSource, sources),
		}}).Clause()
		out = append(out, NestedInner(PathAttributes, q,
			innerHits(attr.Name()+":"+subset, req.IncludeRawValues())))
	}
	return out
}

func (a *Assembler) filterAttributes(root *Bool, tree query.FilterTree, policy Policy, searchRaw bool) error {
	for _, stat := range sortedKeys(tree.Ranges) {
		byField := tree.Ranges[stat]
		for _, name := range sortedKeys(byField) {
			attr, ok := a.lookup(name)
			if !ok {
				return fmt.Errorf("field %q: %w", name, domain.ErrUnknownField)
			}
			root.Filter = append(root.Filter,
				attributeRange(attr, stat, byField[name], policy.Allowed(attr.Name()), searchRaw))
		}
	}
	for _, stat := range sortedKeys(tree.Keywords) {
		byField := tree.Keywords[stat]
		for _, name := range sortedKeys(byField) {
			attr, ok := a.lookup(name)
			if !ok {
				return fmt.Errorf("field %q: %w", name, domain.ErrUnknownField)
			}
			inner := &Bool{Filter: []Clause{
				Term(fieldKey, attr.Name()),
				Terms(fieldSource, policy.Allowed(attr.Name())),
			}}
			target := PathAttributes + "." + statField(attr, stat)
			if err := keywordClauses(inner, attr, target, byField[name]); err != nil {
				return err
			}
			root.Filter = append(root.Filter, Nested(PathAttributes, inner.Clause()))
		}
	}
	return nil
}

// attributeRange lowers one field's operator set. The ne key turns the
// equality bounds into an exclusion.
func attributeRange(attr schema.Attribute, stat string, ops query.Ops, allowed []string, searchRaw bool) Clause {
	inner := &Bool{Filter: []Clause{
		Term(fieldKey, attr.Name()),
		Terms(fieldSource, allowed),
	}}
	var cond Clause
	if searchRaw && stat == query.StatValue {
		cond = Nested(PathValues, Range(PathValues+"."+attr.ValueField(), bounds(attr, stat, ops)))
	} else {
		cond = Range(PathAttributes+"."+statField(attr, stat), bounds(attr, stat, ops))
	}
	if _, ne := ops[query.OpNE]; ne {
		inner.MustNot = append(inner.MustNot, cond)
	} else {
		inner.Filter = append(inner.Filter, cond)
	}
	return Nested(PathAttributes, inner.Clause())
}

func bounds(attr schema.Attribute, stat string, ops query.Ops) map[string]any {
	out := make(map[string]any, 2)
	for _, k := range []string{query.OpGT, query.OpGTE, query.OpLT, query.OpLTE} {
		if v, ok := ops[k]; ok {
			out[k] = typedValue(attr, stat, v)
		}
	}
	return out
}

func typedValue(attr schema.Attribute, stat, v string) any {
	if attr.Type().IsNumeric() || stat == "count" || stat == "length" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

// statField returns the nested field holding stat for attr.
func statField(attr schema.Attribute, stat string) string {
	if stat == query.StatValue || stat == "" {
		return attr.ValueField()
	}
	return stat
}

var enumOps = []string{">=", "<=", ">", "<"}

// keywordClauses lowers keyword entries: "!a,b" excludes, "op value" entries
// on ordered keywords expand against the enum, plain entries match any
// listed value.
func keywordClauses(b *Bool, attr schema.Attribute, target string, entries []string) error {
	for _, entry := range entries {
		if rest, ok := strings.CutPrefix(entry, "!"); ok {
			for _, v := range splitList(rest) {
				b.MustNot = append(b.MustNot, valueMatch(target, v))
			}
			continue
		}
		if op, v, ok := cutEnumOp(entry); ok && attr.Type() == schema.OrderedKeyword {
			subset, err := EnumRange(attr.Enum(), op, v)
			if err != nil {
				return fmt.Errorf("field %q: %w", attr.Name(), err)
			}
			b.Filter = append(b.Filter, Terms(target, subset))
			continue
		}
		values := splitList(entry)
		if len(values) == 0 {
			continue
		}
		matches := make([]Clause, 0, len(values))
		var plain []string
		for _, v := range values {
			if strings.Contains(v, "*") {
				matches = append(matches, Wildcard(target, v))
			} else {
				plain = append(plain, v)
			}
		}
		if len(plain) > 0 {
			matches = append(matches, Terms(target, plain))
		}
		b.Filter = append(b.Filter, AnyOf(matches...))
	}
	return nil
}

func valueMatch(field, v string) Clause {
	if strings.Contains(v, "*") {
		return Wildcard(field, v)
	}
	return Term(field, v)
}

func cutEnumOp(entry string) (op, value string, ok bool) {
	for _, candidate := range enumOps {
		if v, found := strings.CutPrefix(entry, candidate); found {
			return candidate, strings.TrimSpace(v), true
		}
	}
	return "", "", false
}

// EnumRange collects the enum values on the requested side of v. The enum is
// declared from highest to lowest, so ">" selects values listed before v.
func EnumRange(enum []string, op, v string) ([]string, error) {
	idx := slices.Index(enum, strings.ToLower(v))
	if idx < 0 {
		return nil, fmt.Errorf("value %q is not an allowed value: %w", v, domain.ErrInvalidQuery)
	}
	var subset []string
	switch op {
	case ">":
		subset = enum[:idx]
	case ">=":
		subset = enum[:idx+1]
	case "<":
		subset = enum[idx+1:]
	case "<=":
		subset = enum[idx:]
	default:
		return nil, fmt.Errorf("operator %q: %w", op, domain.ErrInvalidQuery)
	}
	return slices.Clone(subset), nil
}

// filterProperties lowers conditions on identifier fields, which live at the
// top level of the record rather than in nested attributes.
func (a *Assembler) filterProperties(root *Bool, tree query.FilterTree) error {
	for _, stat := range sortedKeys(tree.Ranges) {
		byField := tree.Ranges[stat]
		for _, name := range sortedKeys(byField) {
			ops := byField[name]
			attr, _ := a.identifierAttr(name)
			cond := Range(name, bounds(attr, stat, ops))
			if _, ne := ops[query.OpNE]; ne {
				root.MustNot = append(root.MustNot, cond)
			} else {
				root.Filter = append(root.Filter, cond)
			}
		}
	}
	for _, stat := range sortedKeys(tree.Keywords) {
		byField := tree.Keywords[stat]
		for _, name := range sortedKeys(byField) {
			attr, _ := a.identifierAttr(name)
			if err := keywordClauses(root, attr, name, byField[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Assembler) identifierAttr(name string) (schema.Attribute, bool) {
	if a.identifiers == nil {
		return schema.Attribute{}, false
	}
	return a.identifiers.Lookup(name)
}

// excludeBranches drops records named or classified under unclassified or
// environmental lineage branches.
func excludeBranches(root *Bool, ex request.Exclusions) {
	var patterns []string
	if ex.Unclassified {
		patterns = append(patterns, "*unclassified*")
	}
	if ex.Environmental {
		patterns = append(patterns, "*environmental*")
	}
	for _, p := range patterns {
		root.MustNot = append(root.MustNot,
			Wildcard("scientific_name", p),
			Nested(PathLineage, Wildcard(PathLineage+".scientific_name", p)),
		)
	}
}

// projections adds optional name-class and rank inner hits.
func projections(req *request.Request) []Clause {
	var out []Clause
	if classes := req.NameClasses(); len(classes) > 0 {
		out = append(out, NestedInner(PathNames,
			Terms(PathNames+".class", classes),
			map[string]any{"name": InnerHitNames, "size": maxProjected}))
	}
	if ranks := req.Ranks(); len(ranks) > 0 {
		out = append(out, NestedInner(PathLineage,
			Terms(PathLineage+".taxon_rank", ranks),
			map[string]any{"name": InnerHitRanks, "size": maxProjected}))
	}
	return out
}

// sourceFilter keeps top-level record fields. Lineage is only needed to
// truncate at a common ancestor.
func sourceFilter(req *request.Request) map[string]any {
	excludes := []string{PathAttributes, PathNames}
	if req.LCA() == "" {
		excludes = append(excludes, PathLineage)
	}
	return map[string]any{"excludes": excludes}
}

func nullCounts(fields []schema.Attribute) map[string]any {
	filters := make(map[string]any, len(fields))
	for _, attr := range fields {
		filters[attr.Name()] = (&Bool{MustNot: []Clause{
			Nested(PathAttributes, Term(fieldKey, attr.Name())),
		}}).Clause()
	}
	return map[string]any{
		NullCounts: map[string]any{"filters": map[string]any{"filters": filters}},
	}
}
