package filter

import (
	"maps"
	"slices"
	"strings"
)

// Clause is one engine query clause in its JSON object form.
type Clause = map[string]any

// Body is a complete search request body.
type Body map[string]any

// Without returns a shallow copy of b with keys removed.
func (b Body) Without(keys ...string) Body {
	out := maps.Clone(b)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// With returns a shallow copy of b with key set to v.
func (b Body) With(key string, v any) Body {
	out := maps.Clone(b)
	if out == nil {
		out = make(Body)
	}
	out[key] = v
	return out
}

// Query returns the query clause of the body.
func (b Body) Query() Clause {
	q, _ := b["query"].(Clause)
	return q
}

// Bool accumulates boolean clause lists.
type Bool struct {
	Filter             []Clause
	Should             []Clause
	MustNot            []Clause
	MinimumShouldMatch *int
}

// IsEmpty reports whether no clause was added.
func (b *Bool) IsEmpty() bool {
	return len(b.Filter) == 0 && len(b.Should) == 0 && len(b.MustNot) == 0
}

// Clause renders the bool clause.
func (b *Bool) Clause() Clause {
	body := make(map[string]any)
	if len(b.Filter) > 0 {
		body["filter"] = b.Filter
	}
	if len(b.Should) > 0 {
		body["should"] = b.Should
	}
	if len(b.MustNot) > 0 {
		body["must_not"] = b.MustNot
	}
	if b.MinimumShouldMatch != nil {
		body["minimum_should_match"] = *b.MinimumShouldMatch
	}
	return Clause{"bool": body}
}

func intPtr(i int) *int { return &i }

// MatchAll matches every document.
func MatchAll() Clause {
	return Clause{"match_all": map[string]any{}}
}

// Term matches an exact value.
func Term(field string, value any) Clause {
	return Clause{"term": map[string]any{field: value}}
}

// TermFold matches an exact value ignoring case.
func TermFold(field, value string) Clause {
	return Clause{"term": map[string]any{field: map[string]any{
		"value":            value,
		"case_insensitive": true,
	}}}
}

// Terms matches any of values.
func Terms(field string, values []string) Clause {
	return Clause{"terms": map[string]any{field: values}}
}

// Range bounds a field; bounds keys are gt, gte, lt and lte.
func Range(field string, bounds map[string]any) Clause {
	return Clause{"range": map[string]any{field: bounds}}
}

// Wildcard matches a "*" pattern ignoring case.
func Wildcard(field, pattern string) Clause {
	return Clause{"wildcard": map[string]any{field: map[string]any{
		"value":            pattern,
		"case_insensitive": true,
	}}}
}

// Prefix matches a leading substring ignoring case.
func Prefix(field, prefix string) Clause {
	return Clause{"prefix": map[string]any{field: map[string]any{
		"value":            prefix,
		"case_insensitive": true,
	}}}
}

// Nested scopes query to the nested documents under path.
func Nested(path string, query Clause) Clause {
	return Clause{"nested": map[string]any{"path": path, "query": query}}
}

// NestedInner is Nested with an inner-hit projection named name.
func NestedInner(path string, query Clause, innerHits map[string]any) Clause {
	return Clause{"nested": map[string]any{
		"path":       path,
		"query":      query,
		"inner_hits": innerHits,
	}}
}

// AnyOf matches when at least one clause matches. A single clause is
// returned unwrapped.
func AnyOf(clauses ...Clause) Clause {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return (&Bool{Should: clauses, MinimumShouldMatch: intPtr(1)}).Clause()
}

// NameMatch matches a name exactly, by prefix ("abc*") or by wildcard.
func NameMatch(field, value string) Clause {
	star := strings.Index(value, "*")
	switch {
	case star < 0:
		return TermFold(field, value)
	case star == len(value)-1 && star > 0:
		return Prefix(field, strings.TrimSuffix(value, "*"))
	default:
		return Wildcard(field, value)
	}
}

// splitList splits a comma-separated value list, dropping blanks.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
